package repository

import (
	"context"

	"dossier/internal/domain/model"
)

// CategoryRepository persists categories and their document membership.
// Save and Update report a (user_id, name) collision as
// domain.ErrAlreadyExists.
type CategoryRepository interface {
	Save(ctx context.Context, qx any, cat *model.Category) error
	FindByID(ctx context.Context, qx any, id string) (*model.Category, error)
	ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Category, error)
	Update(ctx context.Context, qx any, id string, updates CategoryUpdate) error
	// AddDocuments has set semantics: ids already in the category are
	// ignored rather than duplicated.
	AddDocuments(ctx context.Context, qx any, id string, documentIDs []string) error
	RemoveDocuments(ctx context.Context, qx any, id string, documentIDs []string) error
	Delete(ctx context.Context, qx any, id string) error
}

// CategoryUpdate carries the mutable category fields. Nil pointers leave
// the stored value untouched.
type CategoryUpdate struct {
	Name        *string
	Description *string
}
