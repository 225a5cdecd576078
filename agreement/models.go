package agreement

import "time"

// Status represents the agreement lifecycle column.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusSigned  Status = "signed"
	StatusVoided  Status = "voided"
)

// Agreement mirrors the agreements table. Content and ContentHash are
// written once at creation and never mutated afterwards; the hash is the
// authoritative integrity reference for the sign viewer.
type Agreement struct {
	ID          string
	CreatorID   string
	Title       string
	Content     string
	ContentHash string
	Status      Status
	CreatedAt   time.Time
	SignedAt    *time.Time
}

// Signable reports whether the agreement still accepts signatures.
func (a Agreement) Signable() bool {
	return a.Status == StatusPending || a.Status == StatusSigned
}
