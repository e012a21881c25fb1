// File: internal/usecase/document_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/domain/ports/repository"
)

// Compile-time check
var _ DocumentUseCase = (*documentUC)(nil)

type DocumentUseCase interface {
	// Submit registers a URL for ingestion. Resubmitting an existing
	// (user, url) pair returns the stored document unchanged with
	// created=false.
	Submit(ctx context.Context, userID, rawURL string) (*model.Document, bool, error)
	Get(ctx context.Context, userID, id string) (*model.Document, error)
	List(ctx context.Context, userID string, offset, limit int) ([]*model.Document, error)
	// Delete removes the record and its chunk set from the vector index.
	// The vector delete runs first so a failure never orphans chunks.
	Delete(ctx context.Context, userID, id string) error
	// Resubmit resets a completed or failed document to pending for a
	// fresh ingestion pass. The chunk set is fully replaced on that pass.
	Resubmit(ctx context.Context, userID, id string) (*model.Document, error)
}

type documentUC struct {
	docs    repository.DocumentRepository
	tx      repository.TransactionManager
	vectors adapter.VectorStoreAdapter
	cache   ContentHashCache
	log     *zerolog.Logger
}

func NewDocumentUseCase(
	docs repository.DocumentRepository,
	tx repository.TransactionManager,
	vectors adapter.VectorStoreAdapter,
	cache ContentHashCache,
	log *zerolog.Logger,
) *documentUC {
	return &documentUC{docs: docs, tx: tx, vectors: vectors, cache: cache, log: log}
}

func (u *documentUC) Submit(ctx context.Context, userID, rawURL string) (*model.Document, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: empty user id", domain.ErrInvalidArgument)
	}
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	if existing, err := u.docs.FindByUserAndURL(ctx, nil, userID, normalized); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	doc := &model.Document{
		UserID: userID,
		URL:    normalized,
		Status: model.DocumentStatusPending,
	}
	if err := u.docs.Save(ctx, nil, doc); err != nil {
		// Lost a submit race: return the winner's record.
		if errors.Is(err, domain.ErrAlreadyExists) {
			winner, ferr := u.docs.FindByUserAndURL(ctx, nil, userID, normalized)
			return winner, false, ferr
		}
		return nil, false, err
	}
	u.log.Info().Str("document_id", doc.ID).Str("url", normalized).Msg("document submitted")
	return doc, true, nil
}

func (u *documentUC) Get(ctx context.Context, userID, id string) (*model.Document, error) {
	doc, err := u.docs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (u *documentUC) List(ctx context.Context, userID string, offset, limit int) ([]*model.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.docs.ListByUser(ctx, nil, userID, offset, limit)
}

func (u *documentUC) Delete(ctx context.Context, userID, id string) error {
	doc, err := u.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := u.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if u.cache != nil {
		if err := u.cache.Forget(ctx, doc.ID); err != nil {
			u.log.Warn().Err(err).Str("document_id", doc.ID).Msg("content hash not forgotten")
		}
	}
	return u.docs.Delete(ctx, nil, doc.ID)
}

func (u *documentUC) Resubmit(ctx context.Context, userID, id string) (*model.Document, error) {
	var out *model.Document
	reset := func(ctx context.Context, qx repository.Tx) error {
		doc, err := u.docs.FindByID(ctx, qx, id)
		if err != nil {
			return err
		}
		if doc.UserID != userID {
			return domain.ErrNotFound
		}
		if doc.Status != model.DocumentStatusCompleted && doc.Status != model.DocumentStatusFailed {
			return fmt.Errorf("%w: document is %s", domain.ErrInvalidArgument, doc.Status)
		}

		retries := 0
		lastErr := ""
		update := repository.StatusUpdate{
			Status:    model.DocumentStatusPending,
			Retries:   &retries,
			LastError: &lastErr,
		}
		if err := u.docs.UpdateStatus(ctx, qx, doc.ID, update, doc.Status); err != nil {
			return err
		}
		out, err = u.docs.FindByID(ctx, qx, doc.ID)
		return err
	}

	var err error
	if u.tx != nil {
		err = u.tx.WithTx(ctx, pgx.TxOptions{}, reset)
	} else {
		err = reset(ctx, nil)
	}
	if err != nil {
		return nil, err
	}

	// Drop the cached content hash so the next run re-embeds even when
	// the page has not changed.
	if u.cache != nil {
		if err := u.cache.Forget(ctx, out.ID); err != nil {
			u.log.Warn().Err(err).Str("document_id", out.ID).Msg("content hash not forgotten")
		}
	}
	return out, nil
}

func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url %q", domain.ErrInvalidArgument, rawURL)
	}
	parsed.Fragment = ""
	return parsed.String(), nil
}
