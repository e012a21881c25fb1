// File: internal/infra/worker/document_processor.go
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/repository"
	"dossier/internal/infra/logging"
	"dossier/internal/infra/metrics"
	"dossier/internal/usecase"
)

// DocumentProcessor drives the ingestion state machine. Each poll cycle
// claims pending documents (plus processing documents abandoned past the
// staleness threshold) and runs ingestion for each through the pool.
//
// The conditional status update is the only claim primitive: a lost race
// surfaces as ErrPreconditionFailed and is skipped silently, so multiple
// processors over the same table never double-process a document.
type DocumentProcessor struct {
	docs         repository.DocumentRepository
	ingestion    usecase.IngestionUseCase
	pollInterval time.Duration
	maxRetries   int
	staleAfter   time.Duration
	log          *zerolog.Logger

	// inFlight holds ids claimed by this process, so a long-running
	// ingestion is not re-listed by the next cycle.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewDocumentProcessor(
	docs repository.DocumentRepository,
	ingestion usecase.IngestionUseCase,
	pollInterval time.Duration,
	maxRetries int,
	staleAfter time.Duration,
	log *zerolog.Logger,
) *DocumentProcessor {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &DocumentProcessor{
		docs:         docs,
		ingestion:    ingestion,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		staleAfter:   staleAfter,
		log:          log,
		inFlight:     make(map[string]struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled.
// This should be run in a goroutine.
func (p *DocumentProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("poll_interval", p.pollInterval).Msg("document processor started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("document processor stopping")
			return
		case <-ticker.C:
			p.runCycle(ctx, pool)
		}
	}
}

func (p *DocumentProcessor) runCycle(ctx context.Context, pool *Pool) {
	docs, err := p.docs.ListClaimable(ctx, nil, p.staleAfter)
	if err != nil {
		p.log.Error().Err(err).Msg("claimable listing failed")
		return
	}

	for _, doc := range docs {
		if !p.track(doc.ID) {
			continue
		}
		claimed, err := p.claim(ctx, doc)
		if err != nil {
			p.untrack(doc.ID)
			p.log.Error().Err(err).Str("document_id", doc.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			p.untrack(doc.ID)
			continue
		}

		d := doc
		if err := pool.Submit(func(ctx context.Context) error {
			defer p.untrack(d.ID)
			p.processOne(ctx, d)
			return nil
		}); err != nil {
			// Queue saturated: release the in-memory slot, the row keeps
			// its processing status and is recovered by the staleness
			// check if this process dies before the next cycle picks it up.
			p.untrack(d.ID)
			p.log.Warn().Err(err).Str("document_id", d.ID).Msg("submit rejected")
		}
	}
}

// claim transitions a document into processing, preconditioned on the
// status observed in the listing. Two concurrent claimers race on that
// precondition and exactly one wins.
func (p *DocumentProcessor) claim(ctx context.Context, doc *model.Document) (bool, error) {
	update := repository.StatusUpdate{Status: model.DocumentStatusProcessing}
	err := p.docs.UpdateStatus(ctx, nil, doc.ID, update, doc.Status)
	if errors.Is(err, domain.ErrPreconditionFailed) || errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *DocumentProcessor) processOne(ctx context.Context, doc *model.Document) {
	ctx = logging.WithUserID(logging.WithDocID(ctx, doc.ID), doc.UserID)
	log := logging.With(ctx, p.log)
	defer logging.TraceDuration(log, "DocumentProcessor.processOne")()

	log.Info().Str("url", doc.URL).Msg("processing document")
	start := time.Now()

	res, err := p.ingestion.Ingest(ctx, doc)
	if err != nil {
		p.markFailure(doc, err)
		log.Error().Err(err).Int("retries", doc.Retries).Dur("duration", time.Since(start)).Msg("ingestion failed")
		return
	}

	p.markSuccess(doc, res)
	log.Info().Int("chunks", res.ChunkCount).Bool("skipped", res.Skipped).
		Dur("duration", time.Since(start)).Msg("document completed")
}

func (p *DocumentProcessor) markSuccess(doc *model.Document, res *usecase.IngestResult) {
	// Background context: the final status write must land even when the
	// triggering context is already cancelled by shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lastErr := ""
	update := repository.StatusUpdate{
		Status:     model.DocumentStatusCompleted,
		LastError:  &lastErr,
		Title:      &res.Title,
		Content:    &res.Content,
		ChunkCount: &res.ChunkCount,
	}
	if !res.IndexedAt.IsZero() {
		at := res.IndexedAt
		update.IndexedAt = &at
	}
	if err := p.docs.UpdateStatus(ctx, nil, doc.ID, update, model.DocumentStatusProcessing); err != nil {
		p.log.Error().Err(err).Str("document_id", doc.ID).Msg("completion write failed")
		return
	}
	metrics.IncDocumentProcessed("completed")
}

func (p *DocumentProcessor) markFailure(doc *model.Document, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc.Retries++
	lastErr := cause.Error()
	update := repository.StatusUpdate{
		Retries:   &doc.Retries,
		LastError: &lastErr,
	}
	outcome := "retried"
	if doc.CanRetry(p.maxRetries) {
		update.Status = model.DocumentStatusPending
		metrics.IncDocumentRetry()
	} else {
		update.Status = model.DocumentStatusFailed
		outcome = "failed"
	}

	if err := p.docs.UpdateStatus(ctx, nil, doc.ID, update, model.DocumentStatusProcessing); err != nil {
		p.log.Error().Err(err).Str("document_id", doc.ID).Msg("failure write failed")
		return
	}
	metrics.IncDocumentProcessed(outcome)
}

func (p *DocumentProcessor) track(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[id]; ok {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *DocumentProcessor) untrack(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
