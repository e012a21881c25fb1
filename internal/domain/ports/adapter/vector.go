package adapter

import (
	"context"
	"time"

	"dossier/internal/domain/model"
)

// VectorPoint is one chunk entry in the similarity index.
type VectorPoint struct {
	DocumentID string
	UserID     string
	Index      int
	Text       string
	Vector     []float64
	IndexedAt  time.Time
}

// SearchFilter narrows a similarity search server-side. Filtering must
// never happen client-side on a truncated top-k.
type SearchFilter struct {
	UserID     string
	DocumentID string
}

// VectorStoreAdapter wraps the external similarity-search store.
type VectorStoreAdapter interface {
	// Upsert writes the given points. Callers replace a document's prior
	// chunk set by calling DeleteByDocument first.
	Upsert(ctx context.Context, points []VectorPoint) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, vector []float64, k int, filter SearchFilter) ([]model.ScoredChunk, error)
}
