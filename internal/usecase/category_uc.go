// File: internal/usecase/category_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/repository"
)

// Compile-time check
var _ CategoryUseCase = (*categoryUC)(nil)

const (
	defaultSummaryDocs = 3
	maxSummaryDocs     = 50
)

type CategoryUseCase interface {
	// Create registers a category. Names are unique per user; a duplicate
	// returns domain.ErrAlreadyExists.
	Create(ctx context.Context, userID, name, description string) (*model.Category, error)
	Get(ctx context.Context, userID, id string) (*model.Category, error)
	List(ctx context.Context, userID string, offset, limit int) ([]*model.Category, error)
	// Update renames a category or changes its description. Nil fields
	// are left untouched; a rename into an existing name conflicts.
	Update(ctx context.Context, userID, id string, name, description *string) (*model.Category, error)
	Delete(ctx context.Context, userID, id string) error
	// AddDocuments attaches documents to a category. Every id must name a
	// document owned by the same user, or the whole operation is rejected.
	AddDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error)
	RemoveDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error)
	// Documents lists the category's member documents, newest first.
	Documents(ctx context.Context, userID, id string, offset, limit int) ([]*model.Document, error)
	// Summary returns the category with up to docLimit representative
	// documents. news overrides the category description when non-empty.
	Summary(ctx context.Context, userID, id string, docLimit int, news string) (*model.CategorySummary, error)
}

type categoryUC struct {
	cats repository.CategoryRepository
	docs repository.DocumentRepository
	log  *zerolog.Logger
}

func NewCategoryUseCase(
	cats repository.CategoryRepository,
	docs repository.DocumentRepository,
	log *zerolog.Logger,
) *categoryUC {
	return &categoryUC{cats: cats, docs: docs, log: log}
}

func (u *categoryUC) Create(ctx context.Context, userID, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, fmt.Errorf("%w: user id and name are required", domain.ErrInvalidArgument)
	}

	cat := &model.Category{UserID: userID, Name: name, Description: description}
	if err := u.cats.Save(ctx, nil, cat); err != nil {
		return nil, err
	}
	u.log.Info().Str("category_id", cat.ID).Str("name", name).Msg("category created")
	return cat, nil
}

func (u *categoryUC) Get(ctx context.Context, userID, id string) (*model.Category, error) {
	cat, err := u.cats.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if cat.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return cat, nil
}

func (u *categoryUC) List(ctx context.Context, userID string, offset, limit int) ([]*model.Category, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.cats.ListByUser(ctx, nil, userID, offset, limit)
}

func (u *categoryUC) Update(ctx context.Context, userID, id string, name, description *string) (*model.Category, error) {
	if _, err := u.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: empty category name", domain.ErrInvalidArgument)
		}
		name = &trimmed
	}
	if name == nil && description == nil {
		return u.Get(ctx, userID, id)
	}

	update := repository.CategoryUpdate{Name: name, Description: description}
	if err := u.cats.Update(ctx, nil, id, update); err != nil {
		return nil, err
	}
	return u.cats.FindByID(ctx, nil, id)
}

func (u *categoryUC) Delete(ctx context.Context, userID, id string) error {
	if _, err := u.Get(ctx, userID, id); err != nil {
		return err
	}
	return u.cats.Delete(ctx, nil, id)
}

func (u *categoryUC) AddDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error) {
	if _, err := u.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: no document ids", domain.ErrInvalidArgument)
	}

	// All-or-nothing: a single unknown or foreign document rejects the
	// whole batch, so a category never holds ids its owner cannot read.
	docs, err := u.docs.ListByIDs(ctx, nil, documentIDs)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.UserID == userID {
			owned[d.ID] = struct{}{}
		}
	}
	for _, docID := range documentIDs {
		if _, ok := owned[docID]; !ok {
			return nil, fmt.Errorf("%w: document %s not found", domain.ErrInvalidArgument, docID)
		}
	}

	if err := u.cats.AddDocuments(ctx, nil, id, documentIDs); err != nil {
		return nil, err
	}
	return u.cats.FindByID(ctx, nil, id)
}

func (u *categoryUC) RemoveDocuments(ctx context.Context, userID, id string, documentIDs []string) (*model.Category, error) {
	if _, err := u.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: no document ids", domain.ErrInvalidArgument)
	}
	if err := u.cats.RemoveDocuments(ctx, nil, id, documentIDs); err != nil {
		return nil, err
	}
	return u.cats.FindByID(ctx, nil, id)
}

func (u *categoryUC) Documents(ctx context.Context, userID, id string, offset, limit int) ([]*model.Document, error) {
	cat, err := u.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := u.memberDocuments(ctx, cat)
	if err != nil {
		return nil, err
	}
	if offset >= len(docs) {
		return nil, nil
	}
	docs = docs[offset:]
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (u *categoryUC) Summary(ctx context.Context, userID, id string, docLimit int, news string) (*model.CategorySummary, error) {
	cat, err := u.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if docLimit <= 0 {
		docLimit = defaultSummaryDocs
	}
	if docLimit > maxSummaryDocs {
		docLimit = maxSummaryDocs
	}
	if news == "" {
		news = cat.Description
	}

	docs, err := u.memberDocuments(ctx, cat)
	if err != nil {
		return nil, err
	}
	if len(docs) > docLimit {
		docs = docs[:docLimit]
	}

	return &model.CategorySummary{
		Category:       cat,
		News:           news,
		Representative: docs,
		TotalDocuments: len(cat.DocumentIDs),
	}, nil
}

// memberDocuments loads a category's documents, newest first. Member ids
// whose document has since been deleted are dropped from the result.
func (u *categoryUC) memberDocuments(ctx context.Context, cat *model.Category) ([]*model.Document, error) {
	if len(cat.DocumentIDs) == 0 {
		return nil, nil
	}
	docs, err := u.docs.ListByIDs(ctx, nil, cat.DocumentIDs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}
