// File: internal/usecase/retrieval_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/infra/metrics"
)

// Compile-time check
var _ RetrievalUseCase = (*retrievalUC)(nil)

const defaultTopK = 5

type RetrievalUseCase interface {
	// Retrieve embeds the query and runs a filtered similarity search.
	// Results are score-descending; equal scores rank the more recently
	// indexed document first. Read-only: never touches document records.
	Retrieve(ctx context.Context, userID, query string, topK int) ([]model.ScoredChunk, error)
}

type retrievalUC struct {
	embedder adapter.EmbeddingAdapter
	vectors  adapter.VectorStoreAdapter
}

func NewRetrievalUseCase(embedder adapter.EmbeddingAdapter, vectors adapter.VectorStoreAdapter) *retrievalUC {
	return &retrievalUC{embedder: embedder, vectors: vectors}
}

func (u *retrievalUC) Retrieve(ctx context.Context, userID, query string, topK int) ([]model.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	start := time.Now()
	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: query produced %d vectors", domain.ErrEmbedFailed, len(vectors))
	}
	qv := vectors[0]
	if dim := u.embedder.Dimension(); dim > 0 && len(qv) != dim {
		return nil, fmt.Errorf("%w: query vector has %d dims, index expects %d", domain.ErrDimensionMismatch, len(qv), dim)
	}

	// The user filter is applied inside the store, never client-side on a
	// truncated top-k.
	chunks, err := u.vectors.Search(ctx, qv, topK, adapter.SearchFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].IndexedAt.After(chunks[j].IndexedAt)
	})

	metrics.ObserveRetrieval(int(time.Since(start).Milliseconds()))
	return chunks, nil
}
