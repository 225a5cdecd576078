package auth

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest contains password login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProviderLoginRequest carries a provider-issued credential: an OAuth
// authorization code, or the ticket handed back after a QR scan.
type ProviderLoginRequest struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
	RedirectTo string `json:"redirectTo,omitempty"`
}
