// File: internal/usecase/ingestion_uc.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dossier/internal/chunker"
	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/infra/metrics"
)

// Compile-time check
var _ IngestionUseCase = (*ingestionUC)(nil)

// ContentHashCache remembers the last indexed content hash per document.
// A hit for unchanged content lets ingestion skip the embed and upsert
// stages. Implemented by infra/redis.ContentCache.
type ContentHashCache interface {
	Hash(ctx context.Context, documentID string) string
	StoreHash(ctx context.Context, documentID, hash string) error
	Forget(ctx context.Context, documentID string) error
}

// IngestResult is what a successful ingestion run produced. The caller
// owns persisting it to the document record.
type IngestResult struct {
	Title      string
	Content    string
	ChunkCount int
	IndexedAt  time.Time
	// Skipped is set when the fetched content hash matched the cached one
	// and the vector set was left untouched.
	Skipped bool
}

type IngestionUseCase interface {
	// Ingest runs fetch, extract, chunk, embed and index for one document.
	// Any stage error leaves the vector store without partial writes for
	// this run (the previous chunk set survives until the replace step).
	Ingest(ctx context.Context, doc *model.Document) (*IngestResult, error)
}

type ingestionUC struct {
	crawler   adapter.CrawlerAdapter
	embedder  adapter.EmbeddingAdapter
	vectors   adapter.VectorStoreAdapter
	cache     ContentHashCache
	splitter  chunker.Chunker
	batchSize int
	log       *zerolog.Logger
}

func NewIngestionUseCase(
	crawler adapter.CrawlerAdapter,
	embedder adapter.EmbeddingAdapter,
	vectors adapter.VectorStoreAdapter,
	cache ContentHashCache,
	splitter chunker.Chunker,
	batchSize int,
	log *zerolog.Logger,
) *ingestionUC {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &ingestionUC{
		crawler:   crawler,
		embedder:  embedder,
		vectors:   vectors,
		cache:     cache,
		splitter:  splitter,
		batchSize: batchSize,
		log:       log,
	}
}

func (u *ingestionUC) Ingest(ctx context.Context, doc *model.Document) (*IngestResult, error) {
	start := time.Now()

	page, err := u.crawler.Fetch(ctx, doc.URL)
	if err != nil {
		return nil, err
	}
	// The trimmed text is the canonical content: chunk offsets index into
	// it, so it is also what gets stored and hashed.
	text := strings.TrimSpace(page.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentEmpty, doc.URL)
	}

	res := &IngestResult{Title: page.Title, Content: text}

	hash := contentHash(text)
	if u.cache != nil && doc.ChunkCount > 0 && u.cache.Hash(ctx, doc.ID) == hash {
		u.log.Debug().Str("document_id", doc.ID).Msg("content unchanged, skipping re-index")
		res.ChunkCount = doc.ChunkCount
		res.IndexedAt = doc.IndexedAt
		res.Skipped = true
		return res, nil
	}

	chunks := u.splitter.Split(doc.ID, doc.UserID, text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentEmpty, doc.URL)
	}

	vectors, err := u.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	indexedAt := time.Now().UTC()
	points := make([]adapter.VectorPoint, len(chunks))
	for i, c := range chunks {
		points[i] = adapter.VectorPoint{
			DocumentID: c.DocumentID,
			UserID:     c.UserID,
			Index:      c.Index,
			Text:       c.Text,
			Vector:     vectors[i],
			IndexedAt:  indexedAt,
		}
	}

	// Replace semantics: the old chunk set goes away in full before the
	// new one lands, so stale chunks never survive a re-index.
	if err := u.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, err
	}
	if err := u.vectors.Upsert(ctx, points); err != nil {
		return nil, err
	}

	if u.cache != nil {
		if err := u.cache.StoreHash(ctx, doc.ID, hash); err != nil {
			u.log.Warn().Err(err).Str("document_id", doc.ID).Msg("content hash not cached")
		}
	}

	res.ChunkCount = len(chunks)
	res.IndexedAt = indexedAt
	metrics.ObserveIngest(time.Since(start).Seconds(), len(chunks))
	return res, nil
}

// embedChunks embeds all chunk texts in config-sized batches. A failure in
// any batch fails the whole run before anything is written.
func (u *ingestionUC) embedChunks(ctx context.Context, chunks []model.Chunk) ([][]float64, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float64, 0, len(texts))
	for lo := 0; lo < len(texts); lo += u.batchSize {
		hi := lo + u.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		batch, err := u.embedder.Embed(ctx, texts[lo:hi])
		if err != nil {
			return nil, err
		}
		if len(batch) != hi-lo {
			return nil, fmt.Errorf("%w: batch of %d returned %d vectors", domain.ErrEmbedFailed, hi-lo, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
