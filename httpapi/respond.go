package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/signing"
	"pactflow/template"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the domain error taxonomy onto HTTP. Every error becomes
// a result value with a human-readable message; unknown errors become a
// generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var ve *agreement.ValidationError
	switch {
	case errors.As(err, &ve):
		writeMessage(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, signing.ErrNotAuthenticated):
		writeMessage(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, signature.ErrAlreadySigned):
		writeMessage(w, http.StatusConflict, "You have already signed.")
	case errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, template.ErrNotFound),
		errors.Is(err, profile.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrProviderDenied):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrWeakPassword):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, template.ErrInvalid):
		writeMessage(w, http.StatusBadRequest, "title and content required")
	case errors.Is(err, auth.ErrUnknownProvider):
		writeMessage(w, http.StatusBadRequest, "Unknown provider")
	case errors.Is(err, profile.ErrDuplicateEmail):
		writeMessage(w, http.StatusConflict, "Email already registered")
	default:
		writeMessage(w, http.StatusInternalServerError, "Something went wrong")
	}
}
