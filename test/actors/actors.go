// Package actors drives the signing workflow the way real users do:
// creators publish agreements, signers race to sign them. The stress suite
// composes these against a live database.
package actors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pactflow/agreement"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/signing"
)

// Identity provisions a profile row and returns the identity the workflow
// sees after login. Provisioning up front keeps foreign keys satisfied even
// when the workflow's own best-effort upsert loses a race.
func Identity(ctx context.Context, profiles profile.Repository, name string) (profile.Identity, error) {
	id := uuid.NewString()
	email := fmt.Sprintf("%s-%s@stress.test", name, id[:8])
	if _, err := profiles.Upsert(ctx, profile.UpsertParams{ID: id, FullName: name, Email: &email}); err != nil {
		return profile.Identity{}, fmt.Errorf("provision %s: %w", name, err)
	}
	return profile.Identity{ID: id, Email: email, Name: name}, nil
}

// Creator publishes agreements on behalf of one identity.
type Creator struct {
	Ident profile.Identity
	Svc   *signing.Service
}

// Publish creates a pending agreement with generated content so each run
// produces distinct fingerprints.
func (c *Creator) Publish(ctx context.Context, n int) (agreement.Agreement, error) {
	title := fmt.Sprintf("Stress agreement %d", n)
	content := fmt.Sprintf("Agreement %d issued by %s under run %s.", n, c.Ident.Name, uuid.NewString())
	return c.Svc.CreateAndPublish(ctx, c.Ident, title, content)
}

// Signer signs agreements on behalf of one identity.
type Signer struct {
	Ident profile.Identity
	Svc   *signing.Service
}

// Sign records the signer's signature. Duplicate attempts are part of the
// workload; the returned bool reports whether this attempt won the row.
func (s *Signer) Sign(ctx context.Context, agreementID string) (bool, error) {
	_, err := s.Svc.Sign(ctx, s.Ident, agreementID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, signature.ErrAlreadySigned) {
		return false, nil
	}
	return false, err
}
