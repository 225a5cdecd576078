package agreement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateParams contains write parameters for a new agreement record.
type CreateParams struct {
	CreatorID   string
	Title       string
	Content     string
	ContentHash string
}

// Store defines the persistence contract consumed by the signing workflow.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Agreement, error)
	GetByID(ctx context.Context, id string) (Agreement, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Agreement, error)
	MarkSigned(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
}

// PGStore implements Store backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed agreement store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts a new agreement with status pending. Title and content are
// trimmed; either being empty is a validation failure.
func (s *PGStore) Create(ctx context.Context, params CreateParams) (Agreement, error) {
	if params.CreatorID == "" {
		return Agreement{}, fmt.Errorf("agreement: missing creator id")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return Agreement{}, NewValidationError("title required")
	}
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return Agreement{}, NewValidationError("content required")
	}
	if params.ContentHash == "" {
		return Agreement{}, fmt.Errorf("agreement: missing content hash")
	}

	const insertSQL = `
		INSERT INTO agreements (creator_id, title, content, content_hash, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, creator_id, title, content, content_hash, status::text, created_at, signed_at
	`

	rec, err := scanAgreement(s.pool.QueryRow(ctx, insertSQL, params.CreatorID, title, content, params.ContentHash))
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: insert: %w", err)
	}
	return rec, nil
}

// GetByID fetches an agreement by its primary key. The store performs no
// authorization; callers decide who may see the content.
func (s *PGStore) GetByID(ctx context.Context, id string) (Agreement, error) {
	const selectSQL = `
		SELECT id, creator_id, title, content, content_hash, status::text, created_at, signed_at
		FROM agreements
		WHERE id = $1
	`

	rec, err := scanAgreement(s.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: get by id: %w", err)
	}
	return rec, nil
}

// ListByCreator returns the creator's agreements, newest first.
func (s *PGStore) ListByCreator(ctx context.Context, creatorID string) ([]Agreement, error) {
	const listSQL = `
		SELECT id, creator_id, title, content, content_hash, status::text, created_at, signed_at
		FROM agreements
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, listSQL, creatorID)
	if err != nil {
		return nil, fmt.Errorf("agreement: list by creator: %w", err)
	}
	defer rows.Close()

	out := make([]Agreement, 0, 8)
	for rows.Next() {
		rec, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("agreement: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate: %w", err)
	}
	return out, nil
}

// MarkSigned advances a pending agreement to signed inside the caller's
// transaction. signed_at is only written once.
func (s *PGStore) MarkSigned(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	const updateSQL = `
		UPDATE agreements
		SET status = 'signed',
		    signed_at = COALESCE(signed_at, $2)
		WHERE id = $1 AND status = 'pending'
	`

	if _, err := tx.Exec(ctx, updateSQL, id, at); err != nil {
		return fmt.Errorf("agreement: mark signed: %w", err)
	}
	return nil
}

func scanAgreement(row pgx.Row) (Agreement, error) {
	var (
		rec      Agreement
		signedAt *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.CreatorID,
		&rec.Title,
		&rec.Content,
		&rec.ContentHash,
		&rec.Status,
		&rec.CreatedAt,
		&signedAt,
	)
	if err != nil {
		return Agreement{}, err
	}
	rec.ContentHash = strings.TrimSpace(rec.ContentHash)
	rec.SignedAt = signedAt
	return rec, nil
}
