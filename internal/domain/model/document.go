package model

import "time"

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the persisted record for a submitted web page. The worker
// loop is the only writer of Status, Retries and LastError after creation.
type Document struct {
	ID         string
	UserID     string
	URL        string
	Title      string
	Content    string // raw extracted text snapshot
	Summary    string
	Status     DocumentStatus
	Retries    int
	LastError  string
	ChunkCount int
	IndexedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanRetry reports whether a failed run leaves the document eligible
// for another pass under the given retry limit.
func (d *Document) CanRetry(maxRetries int) bool {
	return d.Retries < maxRetries
}
