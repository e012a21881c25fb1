package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// mockDocumentUC is an in-memory DocumentUseCase.
type mockDocumentUC struct {
	docs      map[string]*model.Document
	nextID    int
	submitErr error
	deleteErr error
}

func newMockDocumentUC() *mockDocumentUC {
	return &mockDocumentUC{docs: make(map[string]*model.Document)}
}

func (m *mockDocumentUC) Submit(ctx context.Context, userID, rawURL string) (*model.Document, bool, error) {
	if m.submitErr != nil {
		return nil, false, m.submitErr
	}
	if userID == "" || rawURL == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	for _, d := range m.docs {
		if d.UserID == userID && d.URL == rawURL {
			return d, false, nil
		}
	}
	m.nextID++
	doc := &model.Document{
		ID:     fmt.Sprintf("doc-%d", m.nextID),
		UserID: userID,
		URL:    rawURL,
		Status: model.DocumentStatusPending,
	}
	m.docs[doc.ID] = doc
	return doc, true, nil
}

func (m *mockDocumentUC) Get(ctx context.Context, userID, id string) (*model.Document, error) {
	d, ok := m.docs[id]
	if !ok || d.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentUC) List(ctx context.Context, userID string, offset, limit int) ([]*model.Document, error) {
	var out []*model.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentUC) Delete(ctx context.Context, userID, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentUC) Resubmit(ctx context.Context, userID, id string) (*model.Document, error) {
	d, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DocumentStatusCompleted && d.Status != model.DocumentStatusFailed {
		return nil, domain.ErrInvalidArgument
	}
	d.Status = model.DocumentStatusPending
	d.Retries = 0
	d.LastError = ""
	return d, nil
}

// mockCategoryUC is an in-memory CategoryUseCase. knownDocs maps document
// ids to their owners so AddDocuments validation behaves like the real thing.
type mockCategoryUC struct {
	cats      map[string]*model.Category
	knownDocs map[string]string
	docsByID  map[string]*model.Document
	nextID    int
}

func newMockCategoryUC() *mockCategoryUC {
	return &mockCategoryUC{
		cats:      make(map[string]*model.Category),
		knownDocs: make(map[string]string),
		docsByID:  make(map[string]*model.Document),
	}
}

func (m *mockCategoryUC) addKnownDoc(d *model.Document) {
	m.knownDocs[d.ID] = d.UserID
	m.docsByID[d.ID] = d
}

func (m *mockCategoryUC) Create(ctx context.Context, userID, name, description string) (*model.Category, error) {
	if userID == "" || strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidArgument
	}
	for _, c := range m.cats {
		if c.UserID == userID && c.Name == name {
			return nil, domain.ErrAlreadyExists
		}
	}
	m.nextID++
	cat := &model.Category{
		ID:          fmt.Sprintf("cat-%d", m.nextID),
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	m.cats[cat.ID] = cat
	return cat, nil
}

func (m *mockCategoryUC) Get(ctx context.Context, userID, id string) (*model.Category, error) {
	c, ok := m.cats[id]
	if !ok || c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockCategoryUC) List(ctx context.Context, userID string, offset, limit int) ([]*model.Category, error) {
	var out []*model.Category
	for _, c := range m.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCategoryUC) Update(ctx context.Context, userID, id string, name, description *string) (*model.Category, error) {
	c, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, domain.ErrInvalidArgument
		}
		c.Name = *name
	}
	if description != nil {
		c.Description = *description
	}
	return c, nil
}

func (m *mockCategoryUC) Delete(ctx context.Context, userID, id string) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(m.cats, id)
	return nil
}

func (m *mockCategoryUC) AddDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error) {
	c, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(documentIDs) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, docID := range documentIDs {
		if m.knownDocs[docID] != userID {
			return nil, fmt.Errorf("%w: document %s not found", domain.ErrInvalidArgument, docID)
		}
	}
	have := make(map[string]struct{}, len(c.DocumentIDs))
	for _, d := range c.DocumentIDs {
		have[d] = struct{}{}
	}
	for _, d := range documentIDs {
		if _, ok := have[d]; !ok {
			c.DocumentIDs = append(c.DocumentIDs, d)
			have[d] = struct{}{}
		}
	}
	return c, nil
}

func (m *mockCategoryUC) RemoveDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error) {
	c, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	drop := make(map[string]struct{}, len(documentIDs))
	for _, d := range documentIDs {
		drop[d] = struct{}{}
	}
	kept := c.DocumentIDs[:0]
	for _, d := range c.DocumentIDs {
		if _, ok := drop[d]; !ok {
			kept = append(kept, d)
		}
	}
	c.DocumentIDs = kept
	return c, nil
}

func (m *mockCategoryUC) Documents(ctx context.Context, userID, id string, offset, limit int) ([]*model.Document, error) {
	c, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var out []*model.Document
	for _, docID := range c.DocumentIDs {
		if d, ok := m.docsByID[docID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockCategoryUC) Summary(ctx context.Context, userID, id string, docLimit int, news string) (*model.CategorySummary, error) {
	c, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if docLimit <= 0 {
		docLimit = 3
	}
	if news == "" {
		news = c.Description
	}
	docs, _ := m.Documents(ctx, userID, id, 0, 0)
	if len(docs) > docLimit {
		docs = docs[:docLimit]
	}
	return &model.CategorySummary{
		Category:       c,
		News:           news,
		Representative: docs,
		TotalDocuments: len(c.DocumentIDs),
	}, nil
}

// mockRetrievalUC replays canned chunks.
type mockRetrievalUC struct {
	results []model.ScoredChunk
	err     error
	gotUser string
	gotTopK int
}

func (m *mockRetrievalUC) Retrieve(ctx context.Context, userID, query string, topK int) ([]model.ScoredChunk, error) {
	m.gotUser = userID
	m.gotTopK = topK
	if query == "" {
		return nil, domain.ErrInvalidArgument
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockInferenceUC streams canned fragments.
type mockInferenceUC struct {
	fragments []string
	streamErr error
	startErr  error
}

func (m *mockInferenceUC) Answer(ctx context.Context, userID, question string, topK int) (adapter.CompletionStream, error) {
	if question == "" {
		return nil, domain.ErrInvalidArgument
	}
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &cannedStream{fragments: m.fragments, err: m.streamErr}, nil
}

func (m *mockInferenceUC) Summarize(ctx context.Context, userID, documentID string) (adapter.CompletionStream, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &cannedStream{fragments: m.fragments, err: m.streamErr}, nil
}

type cannedStream struct {
	fragments []string
	pos       int
	err       error
}

func (s *cannedStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		frag := s.fragments[s.pos]
		s.pos++
		return frag, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *cannedStream) Close() error { return nil }
