package model

import "time"

// Category groups a user's documents under a unique (per-user) name.
// Membership is a set: adding a document that is already a member is a
// no-op, and documents stay valid members across re-indexing runs.
type Category struct {
	ID          string
	UserID      string
	Name        string
	Description string
	DocumentIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategorySummary is a category plus a small set of representative
// documents, for overview views that don't need the full member list.
type CategorySummary struct {
	Category       *Category
	News           string // defaults to the category description
	Representative []*Document
	TotalDocuments int
}
