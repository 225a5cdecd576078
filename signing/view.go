package signing

import (
	"context"

	"github.com/google/uuid"

	"pactflow/agreement"
	"pactflow/fingerprint"
	"pactflow/signature"
)

// View is everything the signing page needs to render an agreement:
// the record itself, its ledger in signing order, and an independent
// recomputation of the content fingerprint.
type View struct {
	Agreement  agreement.Agreement
	Signatures []signature.Signature
	// Verified is false when the stored content no longer hashes to the
	// stored content_hash; the viewer must block signing and show a tamper
	// warning.
	Verified bool
}

// SignView loads the viewer contract for an agreement. Only pending and
// signed agreements are visible through this path; drafts, voided records,
// malformed identifiers, and missing rows all answer not-found so existence
// never leaks.
func (s *Service) SignView(ctx context.Context, agreementID string) (View, error) {
	if err := uuid.Validate(agreementID); err != nil {
		return View{}, agreement.ErrNotFound
	}

	rec, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return View{}, err
	}
	if !rec.Signable() {
		return View{}, agreement.ErrNotFound
	}

	sigs, err := s.ledger.ListByAgreement(ctx, agreementID)
	if err != nil {
		return View{}, err
	}

	return View{
		Agreement:  rec,
		Signatures: sigs,
		Verified:   fingerprint.Matches(rec.Content, rec.ContentHash),
	}, nil
}

// ListByCreator returns the identity's agreements for the dashboard,
// newest first.
func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]agreement.Agreement, error) {
	if creatorID == "" {
		return nil, ErrNotAuthenticated
	}
	return s.agreements.ListByCreator(ctx, creatorID)
}
