// Package oracles holds invariant checks the stress suite runs against the
// database after the workload finishes. Each oracle inspects raw rows, not
// workflow return values, so it catches anything the application layer
// papered over.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckSignatureUniqueness fails if any (agreement_id, signer_id) pair
// holds more than one signature row. The unique constraint should make
// this impossible; the oracle proves it held under contention.
func CheckSignatureUniqueness(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT agreement_id, signer_id, COUNT(*)
		FROM signatures
		GROUP BY agreement_id, signer_id
		HAVING COUNT(*) > 1`)
	if err != nil {
		return fmt.Errorf("query duplicate signatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var agreementID, signerID string
		var n int
		if err := rows.Scan(&agreementID, &signerID, &n); err != nil {
			return fmt.Errorf("scan duplicate row: %w", err)
		}
		return fmt.Errorf("pair (%s, %s) holds %d signature rows", agreementID, signerID, n)
	}
	return rows.Err()
}

// CheckSignatureCount verifies the ledger holds exactly want rows for the
// agreement.
func CheckSignatureCount(ctx context.Context, pool *pgxpool.Pool, agreementID string, want int) error {
	var got int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signatures WHERE agreement_id = $1`, agreementID).Scan(&got)
	if err != nil {
		return fmt.Errorf("count signatures: %w", err)
	}
	if got != want {
		return fmt.Errorf("agreement %s: %d signature rows, want %d", agreementID, got, want)
	}
	return nil
}

// CheckContentIntegrity recomputes every agreement's fingerprint with the
// given hasher and fails on the first mismatch between stored hash and
// stored content.
func CheckContentIntegrity(ctx context.Context, pool *pgxpool.Pool, hash func(string) string) error {
	rows, err := pool.Query(ctx, `SELECT id, content, content_hash FROM agreements`)
	if err != nil {
		return fmt.Errorf("query agreements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, content, stored string
		if err := rows.Scan(&id, &content, &stored); err != nil {
			return fmt.Errorf("scan agreement: %w", err)
		}
		if hash(content) != stored {
			return fmt.Errorf("agreement %s: stored hash does not match content", id)
		}
	}
	return rows.Err()
}

// CheckSignerNamesPresent fails if any signature row carries an empty
// display name; the name fallback chain must always produce something.
func CheckSignerNamesPresent(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signatures WHERE signer_name IS NULL OR signer_name = ''`).Scan(&n)
	if err != nil {
		return fmt.Errorf("count unnamed signatures: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d signature rows have no signer name", n)
	}
	return nil
}
