package agreement

import "errors"

// ErrNotFound is returned when no agreement row exists for the identifier,
// or the row is not visible to the caller. The two cases are deliberately
// indistinguishable so existence does not leak.
var ErrNotFound = errors.New("agreement: not found")

// ValidationError signals malformed or missing caller input. It carries a
// user-facing message and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "agreement: " + e.Msg
}

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
