package model

import "time"

// Chunk is a bounded text segment of a document, the unit of embedding
// and retrieval. Chunk indices for a document are contiguous from 0 and
// deterministic for identical input text.
type Chunk struct {
	DocumentID string
	UserID     string
	Index      int
	Text       string
	Start      int // byte offset into the source content
	End        int
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	DocumentID string
	Index      int
	Text       string
	Score      float64
	IndexedAt  time.Time
}
