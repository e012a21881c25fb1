package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeTxManager runs the callback without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memDocumentRepo is a small in-memory implementation used by unit tests.
type memDocumentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Document
	nextID  int
	saveErr error // used by tests to simulate save failures
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{store: make(map[string]*model.Document)}
}

func (m *memDocumentRepo) Save(ctx context.Context, qx any, doc *model.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.UserID == doc.UserID && d.URL == doc.URL && d.ID != doc.ID {
			return domain.ErrAlreadyExists
		}
	}
	if doc.ID == "" {
		m.nextID++
		doc.ID = fmt.Sprintf("doc-%d", m.nextID)
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *memDocumentRepo) FindByID(ctx context.Context, qx any, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocumentRepo) FindByUserAndURL(ctx context.Context, qx any, userID, url string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.store {
		if d.UserID == userID && d.URL == url {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memDocumentRepo) ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Document
	for _, d := range m.store {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDocumentRepo) ListByIDs(ctx context.Context, qx any, ids []string) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Document
	for _, id := range ids {
		if d, ok := m.store[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDocumentRepo) ListClaimable(ctx context.Context, qx any, staleAfter time.Duration) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-staleAfter)
	var out []*model.Document
	for _, d := range m.store {
		if d.Status == model.DocumentStatusPending ||
			(d.Status == model.DocumentStatusProcessing && d.UpdatedAt.Before(cutoff)) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDocumentRepo) UpdateStatus(ctx context.Context, qx any, id string, updates repository.StatusUpdate, expected model.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if expected != "" && d.Status != expected {
		return domain.ErrPreconditionFailed
	}
	d.Status = updates.Status
	if updates.Retries != nil {
		d.Retries = *updates.Retries
	}
	if updates.LastError != nil {
		d.LastError = *updates.LastError
	}
	if updates.Title != nil {
		d.Title = *updates.Title
	}
	if updates.Content != nil {
		d.Content = *updates.Content
	}
	if updates.Summary != nil {
		d.Summary = *updates.Summary
	}
	if updates.ChunkCount != nil {
		d.ChunkCount = *updates.ChunkCount
	}
	if updates.IndexedAt != nil {
		d.IndexedAt = *updates.IndexedAt
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (m *memDocumentRepo) Delete(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// memCategoryRepo is the in-memory CategoryRepository counterpart.
type memCategoryRepo struct {
	mu     sync.Mutex
	store  map[string]*model.Category
	nextID int
}

func newMemCategoryRepo() *memCategoryRepo {
	return &memCategoryRepo{store: make(map[string]*model.Category)}
}

func (m *memCategoryRepo) Save(ctx context.Context, qx any, cat *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store {
		if c.UserID == cat.UserID && c.Name == cat.Name {
			return domain.ErrAlreadyExists
		}
	}
	m.nextID++
	cat.ID = fmt.Sprintf("cat-%d", m.nextID)
	cat.CreatedAt = time.Now()
	cat.UpdatedAt = cat.CreatedAt
	cp := *cat
	cp.DocumentIDs = append([]string(nil), cat.DocumentIDs...)
	m.store[cat.ID] = &cp
	return nil
}

func (m *memCategoryRepo) FindByID(ctx context.Context, qx any, id string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	cp.DocumentIDs = append([]string(nil), c.DocumentIDs...)
	return &cp, nil
}

func (m *memCategoryRepo) ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Category
	for _, c := range m.store {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCategoryRepo) Update(ctx context.Context, qx any, id string, updates repository.CategoryUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if updates.Name != nil {
		for _, other := range m.store {
			if other.ID != id && other.UserID == c.UserID && other.Name == *updates.Name {
				return domain.ErrAlreadyExists
			}
		}
		c.Name = *updates.Name
	}
	if updates.Description != nil {
		c.Description = *updates.Description
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCategoryRepo) AddDocuments(ctx context.Context, qx any, id string, documentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
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
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCategoryRepo) RemoveDocuments(ctx context.Context, qx any, id string, documentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
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
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCategoryRepo) Delete(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// fakeCrawler serves canned pages by URL.
type fakeCrawler struct {
	pages    map[string]*adapter.Page
	fetchErr error
	calls    int
}

func (f *fakeCrawler) Fetch(ctx context.Context, url string) (*adapter.Page, error) {
	f.calls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return nil, domain.ErrFetchFailed
}

// fakeEmbedder returns deterministic vectors sized dim; position 0 encodes
// the order texts arrived in, so tests can assert batching and ordering.
type fakeEmbedder struct {
	dim      int
	embedErr error
	// failAfter fails the Nth call (1-based) when > 0
	failAfter  int
	calls      int
	batchSizes []int
	seen       []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, domain.ErrEmbedFailed
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, f.dim)
		v[0] = float64(len(f.seen))
		f.seen = append(f.seen, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

// fakeVectorStore records calls in order.
type fakeVectorStore struct {
	mu        sync.Mutex
	points    map[string][]adapter.VectorPoint // by document id
	ops       []string
	deleteErr error
	upsertErr error
	searchErr error
	results   []model.ScoredChunk
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string][]adapter.VectorPoint)}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, points []adapter.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		f.points[p.DocumentID] = append(f.points[p.DocumentID], p)
	}
	return nil
}

func (f *fakeVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "delete:"+documentID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.points, documentID)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float64, k int, filter adapter.SearchFilter) ([]model.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "search:"+filter.UserID)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

// fakeHashCache is an in-memory ContentHashCache.
type fakeHashCache struct {
	mu       sync.Mutex
	hashes   map[string]string
	storeErr error
}

func newFakeHashCache() *fakeHashCache {
	return &fakeHashCache{hashes: make(map[string]string)}
}

func (f *fakeHashCache) Hash(ctx context.Context, documentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[documentID]
}

func (f *fakeHashCache) StoreHash(ctx context.Context, documentID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.hashes[documentID] = hash
	return nil
}

func (f *fakeHashCache) Forget(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, documentID)
	return nil
}

// fakeCompletion plays back canned fragments, or fails mid-stream.
type fakeCompletion struct {
	fragments []string
	startErr  error
	streamErr error
	gotMsgs   []adapter.Message
}

func (f *fakeCompletion) StreamComplete(ctx context.Context, messages []adapter.Message) (adapter.CompletionStream, error) {
	f.gotMsgs = messages
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeStream{fragments: f.fragments, err: f.streamErr}, nil
}

type fakeStream struct {
	fragments []string
	pos       int
	err       error
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
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

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func statusUpdate(status model.DocumentStatus, retries *int, lastErr *string) repository.StatusUpdate {
	return repository.StatusUpdate{Status: status, Retries: retries, LastError: lastErr}
}

// drainStream collects all fragments until EOF or a terminal error.
func drainStream(s adapter.CompletionStream) (string, error) {
	var sb strings.Builder
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
	}
}
