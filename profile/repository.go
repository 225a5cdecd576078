package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested profile does not exist.
	ErrNotFound = errors.New("profile: not found")
	// ErrDuplicateEmail signals the email is already registered.
	ErrDuplicateEmail = errors.New("profile: email already exists")
)

// Repository handles data access for identity profiles.
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	CreateLocal(ctx context.Context, email, fullName, passwordHash string) (Profile, error)
}

// UpsertParams contains the identity snapshot written on every login and
// signing operation.
type UpsertParams struct {
	ID       string
	FullName string
	Email    *string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed profile repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Upsert refreshes the profile row for an identity. Existing rows keep their
// id; display name and email follow the latest provider snapshot.
func (r *PGRepository) Upsert(ctx context.Context, params UpsertParams) (Profile, error) {
	if params.ID == "" {
		return Profile{}, fmt.Errorf("profile: upsert missing id")
	}

	const upsertSQL = `
		INSERT INTO profiles (id, full_name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    email = COALESCE(EXCLUDED.email, profiles.email),
		    updated_at = now()
		RETURNING id, full_name, email, password_hash, phone, wechat_openid, created_at, updated_at
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, upsertSQL, params.ID, params.FullName, params.Email))
	if err != nil {
		return Profile{}, fmt.Errorf("profile: upsert: %w", err)
	}
	return p, nil
}

// CreateLocal inserts a first-party password account.
func (r *PGRepository) CreateLocal(ctx context.Context, email, fullName, passwordHash string) (Profile, error) {
	const insertSQL = `
		INSERT INTO profiles (full_name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, full_name, email, password_hash, phone, wechat_openid, created_at, updated_at
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, insertSQL, fullName, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicateEmail
		}
		return Profile{}, fmt.Errorf("profile: create local: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by its identifier.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	const selectSQL = `
		SELECT id, full_name, email, password_hash, phone, wechat_openid, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: get by id: %w", err)
	}
	return p, nil
}

// GetByEmail retrieves a profile by email address.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	const selectSQL = `
		SELECT id, full_name, email, password_hash, phone, wechat_openid, created_at, updated_at
		FROM profiles
		WHERE email = $1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: get by email: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.PasswordHash,
		&p.Phone,
		&p.WechatOpenID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
