package attachment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by Repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `id, file, mime_type, title, width, height, variants, remote_url, created_at, updated_at`

// Repository handles all attachment database operations.
type Repository struct {
	db DBTX
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a new attachment. A missing ID is generated.
func (r *Repository) Create(ctx context.Context, a *Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Variants == nil {
		a.Variants = []Variant{}
	}
	variants, err := json.Marshal(a.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO attachments (id, file, dir, mime_type, title, width, height, variants)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		a.ID, a.File, Dir(a.File), a.MimeType, a.Title, a.Width, a.Height, variants,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// GetByID fetches an attachment by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Attachment, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	a, err := scanAttachment(r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM attachments WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment by id: %w", err)
	}
	return a, nil
}

// FindByFile resolves a path relative to the upload root to the attachment
// owning it, either as its primary file or as one of its variants.
func (r *Repository) FindByFile(ctx context.Context, file string) (*Attachment, error) {
	variant, err := json.Marshal([]map[string]string{{"file": path.Base(file)}})
	if err != nil {
		return nil, fmt.Errorf("marshal variant filter: %w", err)
	}

	a, err := scanAttachment(r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM attachments
		 WHERE file = $1 OR (dir = $2 AND variants @> $3::jsonb)
		 ORDER BY (file = $1) DESC
		 LIMIT 1`,
		file, Dir(file), variant,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attachment by file: %w", err)
	}
	return a, nil
}

// SetRemoteURL records the offloaded URL of the primary file.
func (r *Repository) SetRemoteURL(ctx context.Context, id, remoteURL string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE attachments SET remote_url = $2, updated_at = now() WHERE id = $1`,
		id, remoteURL,
	)
	if err != nil {
		return fmt.Errorf("set remote url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingOffload returns up to limit attachments without a remote URL
// whose id sorts after afterID. Pass "" to start from the beginning.
func (r *Repository) ListPendingOffload(ctx context.Context, afterID string, limit int) ([]Attachment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM attachments
		 WHERE remote_url IS NULL AND id::text > $1
		 ORDER BY id::text
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending attachments: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending attachments: %w", err)
	}
	return out, nil
}

// Count returns the number of attachments.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM attachments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attachments: %w", err)
	}
	return n, nil
}

// CountPendingOffload returns the number of attachments without a remote URL.
func (r *Repository) CountPendingOffload(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM attachments WHERE remote_url IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending attachments: %w", err)
	}
	return n, nil
}

// Delete removes the attachment record. Remote objects are left alone.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAttachment(row pgx.Row) (*Attachment, error) {
	a := &Attachment{}
	var variants []byte
	err := row.Scan(&a.ID, &a.File, &a.MimeType, &a.Title, &a.Width, &a.Height,
		&variants, &a.RemoteURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &a.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
	}
	if a.Variants == nil {
		a.Variants = []Variant{}
	}
	return a, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// validID reports whether id can match the uuid primary key. Anything else
// cannot exist and is not sent to the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
