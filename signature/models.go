package signature

import "time"

// Signature is one row of the append-only signing ledger: a record that a
// specific identity attested to an agreement at a specific time. SignerName
// is snapshotted at sign time so later profile renames do not rewrite
// history.
type Signature struct {
	ID                string
	AgreementID       string
	SignerID          string
	SignerName        string
	SignedAt          time.Time
	SignatureImageURL *string
}
