package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

const documentColumns = `id, user_id, url, title, content, summary, status, retries, last_error, chunk_count, indexed_at, created_at, updated_at`

func newDocumentID() string {
	return ulid.Make().String()
}

func (r *documentRepo) Save(ctx context.Context, qx any, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = newDocumentID()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const q = `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  summary = EXCLUDED.summary,
  status = EXCLUDED.status,
  retries = EXCLUDED.retries,
  last_error = EXCLUDED.last_error,
  chunk_count = EXCLUDED.chunk_count,
  indexed_at = EXCLUDED.indexed_at,
  updated_at = EXCLUDED.updated_at;`

	var indexedAt *time.Time
	if !doc.IndexedAt.IsZero() {
		indexedAt = &doc.IndexedAt
	}
	_, err := execSQL(ctx, r.pool, qx, q,
		doc.ID, doc.UserID, doc.URL, doc.Title, doc.Content, doc.Summary,
		doc.Status, doc.Retries, doc.LastError, doc.ChunkCount, indexedAt,
		doc.CreatedAt, doc.UpdatedAt)
	return translateUniqueViolation(err)
}

func (r *documentRepo) FindByID(ctx context.Context, qx any, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanDocument(row)
}

func (r *documentRepo) FindByUserAndURL(ctx context.Context, qx any, userID, url string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE user_id=$1 AND url=$2;`
	row, err := pickRow(ctx, r.pool, qx, q, userID, url)
	if err != nil {
		return nil, err
	}
	return scanDocument(row)
}

func (r *documentRepo) ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + documentColumns + ` FROM documents
 WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := pickRows(ctx, r.pool, qx, q, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (r *documentRepo) ListByIDs(ctx context.Context, qx any, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + documentColumns + ` FROM documents
 WHERE id = ANY($1) ORDER BY created_at DESC;`
	rows, err := pickRows(ctx, r.pool, qx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListClaimable returns pending documents plus processing documents whose
// last update predates the staleness threshold (abandoned by a crashed run).
func (r *documentRepo) ListClaimable(ctx context.Context, qx any, staleAfter time.Duration) ([]*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents
 WHERE status=$1 OR (status=$2 AND updated_at < $3)
 ORDER BY created_at;`
	cutoff := time.Now().Add(-staleAfter)
	rows, err := pickRows(ctx, r.pool, qx, q, model.DocumentStatusPending, model.DocumentStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// UpdateStatus applies a status transition in one write. When expected is
// non-empty the write is conditioned on the stored status still matching;
// losing that race returns domain.ErrPreconditionFailed.
func (r *documentRepo) UpdateStatus(ctx context.Context, qx any, id string, updates repository.StatusUpdate, expected model.DocumentStatus) error {
	set := "status=$2, updated_at=$3"
	args := []interface{}{id, updates.Status, time.Now()}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set += fmt.Sprintf(", %s=$%d", col, len(args))
	}
	if updates.Retries != nil {
		add("retries", *updates.Retries)
	}
	if updates.LastError != nil {
		add("last_error", *updates.LastError)
	}
	if updates.Title != nil {
		add("title", *updates.Title)
	}
	if updates.Content != nil {
		add("content", *updates.Content)
	}
	if updates.Summary != nil {
		add("summary", *updates.Summary)
	}
	if updates.ChunkCount != nil {
		add("chunk_count", *updates.ChunkCount)
	}
	if updates.IndexedAt != nil {
		add("indexed_at", *updates.IndexedAt)
	}

	q := "UPDATE documents SET " + set + " WHERE id=$1"
	if expected != "" {
		args = append(args, expected)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	q += ";"

	tag, err := execSQL(ctx, r.pool, qx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if expected != "" {
			return domain.ErrPreconditionFailed
		}
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, qx any, id string) error {
	tag, err := execSQL(ctx, r.pool, qx, `DELETE FROM documents WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var indexedAt *time.Time
	err := row.Scan(&d.ID, &d.UserID, &d.URL, &d.Title, &d.Content, &d.Summary,
		&d.Status, &d.Retries, &d.LastError, &d.ChunkCount, &indexedAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if indexedAt != nil {
		d.IndexedAt = *indexedAt
	}
	return &d, nil
}

func scanDocuments(rows pgx.Rows) ([]*model.Document, error) {
	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
