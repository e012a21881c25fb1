package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/repository"
)

var _ repository.CategoryRepository = (*categoryRepo)(nil)

type categoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *categoryRepo {
	return &categoryRepo{pool: pool}
}

// categoryColumns aggregates membership so a category loads in one query.
// Member ids keep their insertion order.
const categoryColumns = `c.id, c.user_id, c.name, c.description,
 COALESCE(array_agg(cd.document_id ORDER BY cd.added_at) FILTER (WHERE cd.document_id IS NOT NULL), '{}'),
 c.created_at, c.updated_at`

const categoryJoin = ` FROM categories c
 LEFT JOIN category_documents cd ON cd.category_id = c.id`

func (r *categoryRepo) Save(ctx context.Context, qx any, cat *model.Category) error {
	if cat.ID == "" {
		cat.ID = ulid.Make().String()
	}
	now := time.Now()
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = now
	}
	cat.UpdatedAt = now

	const q = `
INSERT INTO categories (id, user_id, name, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, qx, q,
		cat.ID, cat.UserID, cat.Name, cat.Description, cat.CreatedAt, cat.UpdatedAt)
	return translateUniqueViolation(err)
}

func (r *categoryRepo) FindByID(ctx context.Context, qx any, id string) (*model.Category, error) {
	const q = `SELECT ` + categoryColumns + categoryJoin + ` WHERE c.id=$1 GROUP BY c.id;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCategory(row)
}

func (r *categoryRepo) ListByUser(ctx context.Context, qx any, userID string, offset, limit int) ([]*model.Category, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + categoryColumns + categoryJoin + `
 WHERE c.user_id=$1 GROUP BY c.id ORDER BY c.created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := pickRows(ctx, r.pool, qx, q, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoryRepo) Update(ctx context.Context, qx any, id string, updates repository.CategoryUpdate) error {
	set := "updated_at=$2"
	args := []interface{}{id, time.Now()}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set += fmt.Sprintf(", %s=$%d", col, len(args))
	}
	if updates.Name != nil {
		add("name", *updates.Name)
	}
	if updates.Description != nil {
		add("description", *updates.Description)
	}

	tag, err := execSQL(ctx, r.pool, qx, "UPDATE categories SET "+set+" WHERE id=$1;", args...)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *categoryRepo) AddDocuments(ctx context.Context, qx any, id string, documentIDs []string) error {
	// ON CONFLICT DO NOTHING gives the membership its set semantics.
	const q = `
INSERT INTO category_documents (category_id, document_id)
SELECT $1, unnest($2::text[])
ON CONFLICT DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, qx, q, id, documentIDs); err != nil {
		return err
	}
	return r.touch(ctx, qx, id)
}

func (r *categoryRepo) RemoveDocuments(ctx context.Context, qx any, id string, documentIDs []string) error {
	const q = `DELETE FROM category_documents WHERE category_id=$1 AND document_id = ANY($2);`
	if _, err := execSQL(ctx, r.pool, qx, q, id, documentIDs); err != nil {
		return err
	}
	return r.touch(ctx, qx, id)
}

func (r *categoryRepo) Delete(ctx context.Context, qx any, id string) error {
	// category_documents rows go with the category (ON DELETE CASCADE).
	tag, err := execSQL(ctx, r.pool, qx, `DELETE FROM categories WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *categoryRepo) touch(ctx context.Context, qx any, id string) error {
	tag, err := execSQL(ctx, r.pool, qx, `UPDATE categories SET updated_at=$2 WHERE id=$1;`, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCategory(row pgx.Row) (*model.Category, error) {
	var c model.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.DocumentIDs,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return err
}
