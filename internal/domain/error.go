package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// ErrPreconditionFailed signals a lost optimistic status update:
	// another actor already claimed the document. Callers treat it as
	// a skip, not a failure.
	ErrPreconditionFailed = errors.New("status precondition failed")

	// Ingestion stage errors
	ErrFetchFailed  = errors.New("fetch failed")
	ErrContentEmpty = errors.New("no extractable content")
	ErrEmbedFailed  = errors.New("embedding failed")
	ErrVectorStore  = errors.New("vector store failed")

	// Inference errors
	ErrCompletionFailed = errors.New("completion failed")

	// ErrDimensionMismatch means the configured embedding dimension does not
	// match what the embedding service returned. Fail fast; it is a
	// configuration error, not a retryable one.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
