package signature

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadySigned signals a signature already exists for the
// (agreement, signer) pair. It is produced both by the fast-path pre-check
// and by the unique constraint when a concurrent insert loses the race.
var ErrAlreadySigned = errors.New("signature: already signed")

// AppendParams contains write parameters for a new ledger entry.
type AppendParams struct {
	AgreementID string
	SignerID    string
	SignerName  string
}

// Ledger defines the signing-ledger contract. Append must be atomic with
// the existence check; the storage-level unique constraint on
// (agreement_id, signer_id) is the arbiter under concurrency, never an
// application-side check.
type Ledger interface {
	HasSigned(ctx context.Context, agreementID, signerID string) (bool, error)
	Append(ctx context.Context, tx pgx.Tx, params AppendParams) (Signature, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]Signature, error)
	CountByAgreement(ctx context.Context, tx pgx.Tx, agreementID string) (int, error)
}

// PGLedger implements Ledger backed by PostgreSQL.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a PostgreSQL-backed signing ledger.
func NewLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

// HasSigned reports whether the signer already holds a ledger entry for the
// agreement. This is a UX fast path only; Append remains safe without it.
func (l *PGLedger) HasSigned(ctx context.Context, agreementID, signerID string) (bool, error) {
	const existsSQL = `
		SELECT EXISTS (
			SELECT 1 FROM signatures WHERE agreement_id = $1 AND signer_id = $2
		)
	`

	var exists bool
	if err := l.pool.QueryRow(ctx, existsSQL, agreementID, signerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("signature: has signed: %w", err)
	}
	return exists, nil
}

// Append inserts a ledger entry inside the caller's transaction. A unique
// violation on (agreement_id, signer_id) maps to ErrAlreadySigned.
func (l *PGLedger) Append(ctx context.Context, tx pgx.Tx, params AppendParams) (Signature, error) {
	if params.AgreementID == "" {
		return Signature{}, fmt.Errorf("signature: append missing agreement id")
	}
	if params.SignerID == "" {
		return Signature{}, fmt.Errorf("signature: append missing signer id")
	}

	const insertSQL = `
		INSERT INTO signatures (agreement_id, signer_id, signer_name)
		VALUES ($1, $2, $3)
		RETURNING id, agreement_id, signer_id, signer_name, signed_at, signature_image_url
	`

	var sig Signature
	err := tx.QueryRow(ctx, insertSQL, params.AgreementID, params.SignerID, params.SignerName).Scan(
		&sig.ID,
		&sig.AgreementID,
		&sig.SignerID,
		&sig.SignerName,
		&sig.SignedAt,
		&sig.SignatureImageURL,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Signature{}, ErrAlreadySigned
		}
		return Signature{}, fmt.Errorf("signature: append: %w", err)
	}
	return sig, nil
}

// ListByAgreement returns the agreement's signatures in signing order,
// earliest first. seq breaks ties between equal timestamps so the order is
// stable across reads.
func (l *PGLedger) ListByAgreement(ctx context.Context, agreementID string) ([]Signature, error) {
	const listSQL = `
		SELECT id, agreement_id, signer_id, signer_name, signed_at, signature_image_url
		FROM signatures
		WHERE agreement_id = $1
		ORDER BY signed_at ASC, seq ASC
	`

	rows, err := l.pool.Query(ctx, listSQL, agreementID)
	if err != nil {
		return nil, fmt.Errorf("signature: list by agreement: %w", err)
	}
	defer rows.Close()

	out := make([]Signature, 0, 4)
	for rows.Next() {
		var sig Signature
		if err := rows.Scan(&sig.ID, &sig.AgreementID, &sig.SignerID, &sig.SignerName, &sig.SignedAt, &sig.SignatureImageURL); err != nil {
			return nil, fmt.Errorf("signature: scan: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("signature: iterate: %w", err)
	}
	return out, nil
}

// CountByAgreement counts ledger entries inside the caller's transaction,
// observing rows the transaction has just written.
func (l *PGLedger) CountByAgreement(ctx context.Context, tx pgx.Tx, agreementID string) (int, error) {
	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM signatures WHERE agreement_id = $1`, agreementID).Scan(&n); err != nil {
		return 0, fmt.Errorf("signature: count by agreement: %w", err)
	}
	return n, nil
}
