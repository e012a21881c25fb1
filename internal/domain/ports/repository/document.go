package repository

import (
	"context"
	"time"

	"dossier/internal/domain/model"
)

// DocumentRepository is the single source of truth for job state. The
// conditional UpdateStatus is the only concurrency-control primitive the
// worker loop relies on to claim a document.
type DocumentRepository interface {
	Save(ctx context.Context, qx any, doc *model.Document) error
	FindByID(ctx context.Context, qx any, id string) (*model.Document, error)
	FindByUserAndURL(ctx context.Context, qx any, userID, url string) (*model.Document, error)
	ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Document, error)
	// ListByIDs returns the documents matching ids, most recently created
	// first. Missing ids are skipped, not errors.
	ListByIDs(ctx context.Context, qx any, ids []string) ([]*model.Document, error)
	// ListClaimable returns pending documents plus processing documents whose
	// updated_at is older than staleAfter (abandoned by a crashed run).
	ListClaimable(ctx context.Context, qx any, staleAfter time.Duration) ([]*model.Document, error)
	// UpdateStatus conditionally transitions a document. When expected is
	// non-empty the update only applies if the stored status still matches;
	// a failed precondition returns domain.ErrPreconditionFailed.
	UpdateStatus(ctx context.Context, qx any, id string, updates StatusUpdate, expected model.DocumentStatus) error
	Delete(ctx context.Context, qx any, id string) error
}

// StatusUpdate carries the fields the worker loop mutates in one write.
// Nil pointers leave the stored value untouched.
type StatusUpdate struct {
	Status     model.DocumentStatus
	Retries    *int
	LastError  *string
	Title      *string
	Content    *string
	Summary    *string
	ChunkCount *int
	IndexedAt  *time.Time
}
