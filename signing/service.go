// Package signing orchestrates agreement publication and the signature
// ledger. It combines the content fingerprinter, the agreement store, and
// the signing ledger with identity context supplied by the auth layer.
package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pactflow/agreement"
	"pactflow/fingerprint"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/template"
)

// ErrNotAuthenticated signals the operation was attempted without a
// resolvable identity.
var ErrNotAuthenticated = errors.New("signing: not authenticated")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProfileStore is the slice of the profile repository the workflow needs.
type ProfileStore interface {
	Upsert(ctx context.Context, params profile.UpsertParams) (profile.Profile, error)
	GetByID(ctx context.Context, id string) (profile.Profile, error)
}

// TemplateStore loads reusable agreement templates for their owner.
type TemplateStore interface {
	GetForUser(ctx context.Context, id, userID string) (template.Template, error)
}

// Invalidator receives completion signals for view-cache invalidation.
// Signals are advisory; a dropped signal leaves a stale cache that heals on
// the next natural invalidation, never an inconsistent ledger.
type Invalidator interface {
	Invalidate(paths ...string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(...string) {}

// Recorder observes completed operations, e.g. for metrics counters.
type Recorder interface {
	AgreementCreated()
	SignatureRecorded()
	SignatureConflict()
}

type noopRecorder struct{}

func (noopRecorder) AgreementCreated()  {}
func (noopRecorder) SignatureRecorded() {}
func (noopRecorder) SignatureConflict() {}

// Service implements the signing workflow.
type Service struct {
	pool       TxBeginner
	agreements agreement.Store
	ledger     signature.Ledger
	profiles   ProfileStore
	templates  TemplateStore
	policy     agreement.StatusPolicy
	invalidate Invalidator
	recorder   Recorder
	now        func() time.Time
}

// NewService wires the workflow. A nil policy keeps the historical behavior
// of never auto-advancing the status column.
func NewService(pool TxBeginner, agreements agreement.Store, ledger signature.Ledger, profiles ProfileStore) *Service {
	return &Service{
		pool:       pool,
		agreements: agreements,
		ledger:     ledger,
		profiles:   profiles,
		policy:     agreement.KeepPending{},
		invalidate: noopInvalidator{},
		recorder:   noopRecorder{},
		now:        time.Now,
	}
}

// WithStatusPolicy injects the status transition rule.
func (s *Service) WithStatusPolicy(p agreement.StatusPolicy) *Service {
	if p != nil {
		s.policy = p
	}
	return s
}

// WithTemplates enables create-from-template.
func (s *Service) WithTemplates(ts TemplateStore) *Service {
	s.templates = ts
	return s
}

// WithInvalidator installs the view-cache invalidation sink.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	if inv != nil {
		s.invalidate = inv
	}
	return s
}

// WithRecorder installs the operation observer.
func (s *Service) WithRecorder(rec Recorder) *Service {
	if rec != nil {
		s.recorder = rec
	}
	return s
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateAndPublish fingerprints the content and persists a new pending
// agreement for the authenticated identity.
func (s *Service) CreateAndPublish(ctx context.Context, ident profile.Identity, title, content string) (agreement.Agreement, error) {
	if ident.ID == "" {
		return agreement.Agreement{}, ErrNotAuthenticated
	}

	// Best-effort profile refresh; a failure here must not block creation.
	_, _ = s.profiles.Upsert(ctx, profile.UpsertParams{
		ID:       ident.ID,
		FullName: displayName(ident),
		Email:    emailPtr(ident),
	})

	title = strings.TrimSpace(title)
	if title == "" {
		return agreement.Agreement{}, agreement.NewValidationError("title required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return agreement.Agreement{}, agreement.NewValidationError("content required")
	}

	created, err := s.agreements.Create(ctx, agreement.CreateParams{
		CreatorID:   ident.ID,
		Title:       title,
		Content:     content,
		ContentHash: fingerprint.Hex(content),
	})
	if err != nil {
		return agreement.Agreement{}, err
	}

	s.recorder.AgreementCreated()
	s.invalidate.Invalidate("/dashboard")
	return created, nil
}

// CreateFromTemplate publishes a new agreement from one of the identity's
// stored templates.
func (s *Service) CreateFromTemplate(ctx context.Context, ident profile.Identity, templateID string) (agreement.Agreement, error) {
	if ident.ID == "" {
		return agreement.Agreement{}, ErrNotAuthenticated
	}
	if s.templates == nil {
		return agreement.Agreement{}, fmt.Errorf("signing: templates not configured")
	}

	tpl, err := s.templates.GetForUser(ctx, templateID, ident.ID)
	if err != nil {
		return agreement.Agreement{}, err
	}

	return s.CreateAndPublish(ctx, ident, tpl.Title, tpl.Content)
}

// Sign appends the identity's signature to the agreement's ledger. At most
// one signature per (agreement, signer) pair can ever exist: the pre-check
// is a fast path and the storage unique constraint closes the race.
func (s *Service) Sign(ctx context.Context, ident profile.Identity, agreementID string) (signature.Signature, error) {
	if ident.ID == "" {
		return signature.Signature{}, ErrNotAuthenticated
	}
	if err := uuid.Validate(agreementID); err != nil {
		return signature.Signature{}, agreement.NewValidationError("invalid agreement id")
	}

	rec, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return signature.Signature{}, err
	}
	if !rec.Signable() {
		return signature.Signature{}, agreement.ErrNotFound
	}

	// Best-effort profile refresh, mirroring CreateAndPublish.
	_, _ = s.profiles.Upsert(ctx, profile.UpsertParams{
		ID:       ident.ID,
		FullName: displayName(ident),
		Email:    emailPtr(ident),
	})

	signerName := s.resolveSignerName(ctx, ident)

	signed, err := s.ledger.HasSigned(ctx, agreementID, ident.ID)
	if err != nil {
		return signature.Signature{}, err
	}
	if signed {
		s.recorder.SignatureConflict()
		return signature.Signature{}, signature.ErrAlreadySigned
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return signature.Signature{}, fmt.Errorf("signing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sig, err := s.ledger.Append(ctx, tx, signature.AppendParams{
		AgreementID: agreementID,
		SignerID:    ident.ID,
		SignerName:  signerName,
	})
	if err != nil {
		if errors.Is(err, signature.ErrAlreadySigned) {
			s.recorder.SignatureConflict()
		}
		return signature.Signature{}, err
	}

	total, err := s.ledger.CountByAgreement(ctx, tx, agreementID)
	if err != nil {
		return signature.Signature{}, err
	}
	if s.policy.AdvanceAfterSignature(rec, total) {
		if err := s.agreements.MarkSigned(ctx, tx, agreementID, sig.SignedAt); err != nil {
			return signature.Signature{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return signature.Signature{}, fmt.Errorf("signing: commit tx: %w", err)
	}

	s.recorder.SignatureRecorded()
	s.invalidate.Invalidate("/dashboard", "/sign/"+agreementID)
	return sig, nil
}

// resolveSignerName picks the name immortalized on the signature: stored
// profile name, then provider metadata, then the email local-part, then a
// generic placeholder. The order is load-bearing; do not reshuffle.
func (s *Service) resolveSignerName(ctx context.Context, ident profile.Identity) string {
	if p, err := s.profiles.GetByID(ctx, ident.ID); err == nil && p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	if ident.Name != "" {
		return ident.Name
	}
	if local := emailLocalPart(ident.Email); local != "" {
		return local
	}
	return "Signer"
}

// displayName is the snapshot written into the profile upsert.
func displayName(ident profile.Identity) string {
	if ident.Name != "" {
		return ident.Name
	}
	if local := emailLocalPart(ident.Email); local != "" {
		return local
	}
	return "User"
}

func emailPtr(ident profile.Identity) *string {
	if ident.Email == "" {
		return nil
	}
	e := ident.Email
	return &e
}

func emailLocalPart(email string) string {
	if email == "" {
		return ""
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
