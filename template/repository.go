package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound covers both a missing template and one owned by someone
	// else; callers cannot tell the two apart.
	ErrNotFound = errors.New("template: not found")
	// ErrInvalid signals missing title or content.
	ErrInvalid = errors.New("template: title and content required")
)

// Repository handles data access for agreement templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores a new template for the owner.
func (r *Repository) Create(ctx context.Context, userID, title, content string) (Template, error) {
	if userID == "" {
		return Template{}, fmt.Errorf("template: missing user id")
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return Template{}, ErrInvalid
	}

	const insertSQL = `
		INSERT INTO templates (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, title, content, created_at
	`

	var t Template
	err := r.pool.QueryRow(ctx, insertSQL, userID, title, content).
		Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.CreatedAt)
	if err != nil {
		return Template{}, fmt.Errorf("template: insert: %w", err)
	}
	return t, nil
}

// ListByUser returns the owner's templates, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Template, error) {
	const listSQL = `
		SELECT id, user_id, title, content, created_at
		FROM templates
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, listSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("template: list: %w", err)
	}
	defer rows.Close()

	out := make([]Template, 0, 8)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("template: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template: iterate: %w", err)
	}
	return out, nil
}

// GetForUser fetches a template only if userID owns it. Malformed ids
// answer not-found like missing rows, never a storage error.
func (r *Repository) GetForUser(ctx context.Context, id, userID string) (Template, error) {
	if uuid.Validate(id) != nil {
		return Template{}, ErrNotFound
	}

	const selectSQL = `
		SELECT id, user_id, title, content, created_at
		FROM templates
		WHERE id = $1 AND user_id = $2
	`

	var t Template
	err := r.pool.QueryRow(ctx, selectSQL, id, userID).
		Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, fmt.Errorf("template: get: %w", err)
	}
	return t, nil
}
