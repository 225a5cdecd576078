package agreement

// StatusPolicy decides whether recording a signature advances the agreement
// status. The status column and the signature ledger are distinct sources
// of truth today; whether one should drive the other is a product decision,
// so the rule is injected rather than hard-coded.
type StatusPolicy interface {
	// AdvanceAfterSignature reports whether the agreement should move to
	// signed now that it holds total signatures.
	AdvanceAfterSignature(a Agreement, total int) bool
}

// KeepPending never advances the status. This matches the historical
// behavior: signatures accumulate while status stays pending, and the
// presentation layer derives "signed" from ledger contents.
type KeepPending struct{}

func (KeepPending) AdvanceAfterSignature(Agreement, int) bool { return false }

// SignOnFirstSignature advances a pending agreement as soon as the first
// signature lands, stamping signed_at.
type SignOnFirstSignature struct{}

func (SignOnFirstSignature) AdvanceAfterSignature(a Agreement, total int) bool {
	return a.Status == StatusPending && total >= 1
}
