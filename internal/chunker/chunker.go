package chunker

import (
	"strings"

	"dossier/internal/domain/model"
)

// Chunker splits extracted text into bounded, overlapping windows. The
// overlap preserves context across chunk boundaries for retrieval quality.
//
// Splitting is deterministic: identical input always yields an identical
// chunk sequence, which is what makes re-indexing a document idempotent.
type Chunker struct {
	Size    int // max chunk length in runes
	Overlap int // runes shared between consecutive chunks
}

func New(size, overlap int) Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split produces the chunk sequence for a document. Indices are contiguous
// from 0. Start/End are byte offsets into the trimmed input.
func (c Chunker) Split(documentID, userID, text string) []model.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	// byte offset of each rune, plus a sentinel for the end of string
	offsets := make([]int, len(runes)+1)
	pos := 0
	for i, r := range runes {
		offsets[i] = pos
		pos += len(string(r))
	}
	offsets[len(runes)] = len(trimmed)

	stride := c.Size - c.Overlap
	var chunks []model.Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, model.Chunk{
			DocumentID: documentID,
			UserID:     userID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
			Start:      offsets[start],
			End:        offsets[end],
		})
	}
	return chunks
}
