// Package httpapi exposes the signing workflow over HTTP. It is glue: every
// handler decodes input, calls a service, and maps the result; no business
// rules live here.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/signing"
	"pactflow/template"
)

// SigningService is the workflow surface the handlers consume.
type SigningService interface {
	CreateAndPublish(ctx context.Context, ident profile.Identity, title, content string) (agreement.Agreement, error)
	CreateFromTemplate(ctx context.Context, ident profile.Identity, templateID string) (agreement.Agreement, error)
	Sign(ctx context.Context, ident profile.Identity, agreementID string) (signature.Signature, error)
	SignView(ctx context.Context, agreementID string) (signing.View, error)
	ListByCreator(ctx context.Context, creatorID string) ([]agreement.Agreement, error)
}

// AuthService issues and verifies sessions.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (profile.Profile, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	LoginWithProvider(ctx context.Context, req auth.ProviderLoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (profile.Identity, error)
}

// TemplateService manages per-user agreement templates.
type TemplateService interface {
	Create(ctx context.Context, userID, title, content string) (template.Template, error)
	ListByUser(ctx context.Context, userID string) ([]template.Template, error)
}

// Server bundles the handler dependencies.
type Server struct {
	signing   SigningService
	auth      AuthService
	templates TemplateService
	signLimit *IPRateLimiter
}

// NewServer wires the HTTP surface. signLimit may be nil to disable rate
// limiting (tests).
func NewServer(signingSvc SigningService, authSvc AuthService, templates TemplateService, signLimit *IPRateLimiter) *Server {
	return &Server{
		signing:   signingSvc,
		auth:      authSvc,
		templates: templates,
		signLimit: signLimit,
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/callback", s.handleOAuthCallback)
			r.Post("/session", s.handleQRSession)
			r.Post("/logout", s.handleLogout)
			r.With(s.RequireIdentity).Get("/session", s.handleWhoAmI)
		})

		r.Route("/agreements", func(r chi.Router) {
			r.Use(s.RequireIdentity)
			r.Get("/", s.handleListAgreements)
			r.Post("/", s.handleCreateAgreement)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Use(s.RequireIdentity)
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Post("/{templateID}/publish", s.handlePublishTemplate)
		})

		r.Route("/sign/{agreementID}", func(r chi.Router) {
			r.Get("/", s.handleSignView)
			sign := r.With(s.RequireIdentity)
			if s.signLimit != nil {
				sign = sign.With(s.signLimit.Middleware)
			}
			sign.Post("/", s.handleSign)
		})
	})

	return r
}

type createAgreementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type agreementResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content,omitempty"`
	ContentHash string  `json:"contentHash"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	SignedAt    *string `json:"signedAt,omitempty"`
}

func toAgreementResponse(a agreement.Agreement, includeContent bool) agreementResponse {
	resp := agreementResponse{
		ID:          a.ID,
		Title:       a.Title,
		ContentHash: a.ContentHash,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if includeContent {
		resp.Content = a.Content
	}
	if a.SignedAt != nil {
		t := a.SignedAt.UTC().Format(time.RFC3339)
		resp.SignedAt = &t
	}
	return resp
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.signing.CreateAndPublish(r.Context(), ident, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	items, err := s.signing.ListByCreator(r.Context(), ident.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]agreementResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAgreementResponse(a, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
}

type signatureResponse struct {
	SignerID   string `json:"signerId"`
	SignerName string `json:"signerName"`
	SignedAt   string `json:"signedAt"`
}

func (s *Server) handleSignView(w http.ResponseWriter, r *http.Request) {
	view, err := s.signing.SignView(r.Context(), chi.URLParam(r, "agreementID"))
	if err != nil {
		writeError(w, err)
		return
	}

	sigs := make([]signatureResponse, 0, len(view.Signatures))
	for _, sig := range view.Signatures {
		sigs = append(sigs, signatureResponse{
			SignerID:   sig.SignerID,
			SignerName: sig.SignerName,
			SignedAt:   sig.SignedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agreement":  toAgreementResponse(view.Agreement, true),
		"signatures": sigs,
		"verified":   view.Verified,
	})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	if _, err := s.signing.Sign(r.Context(), ident, chi.URLParam(r, "agreementID")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type createTemplateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := s.templates.Create(r.Context(), ident.ID, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": tpl.ID})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	items, err := s.templates.ListByUser(r.Context(), ident.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	type tplResponse struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Content   string `json:"content"`
		CreatedAt string `json:"createdAt"`
	}
	out := make([]tplResponse, 0, len(items))
	for _, t := range items {
		out = append(out, tplResponse{
			ID:        t.ID,
			Title:     t.Title,
			Content:   t.Content,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())

	created, err := s.signing.CreateFromTemplate(r.Context(), ident, chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := s.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, map[string]string{"id": res.Identity.ID})
}

// handleOAuthCallback completes the OAuth code exchange and redirects the
// browser back into the app with a session cookie set.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	redirectTo := sanitizeRedirect(r.URL.Query().Get("redirectTo"))

	res, err := s.auth.LoginWithProvider(r.Context(), auth.ProviderLoginRequest{
		Provider:   "oauth",
		Credential: code,
	})
	if err != nil {
		http.Redirect(w, r, "/login?error=auth_callback_error", http.StatusFound)
		return
	}

	setSessionCookie(w, res.Token)
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// handleQRSession exchanges a scanned-QR ticket for a session cookie.
func (s *Server) handleQRSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticket     string `json:"ticket"`
		RedirectTo string `json:"redirectTo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.auth.LoginWithProvider(r.Context(), auth.ProviderLoginRequest{
		Provider:   "qr",
		Credential: req.Ticket,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, map[string]string{"redirectTo": sanitizeRedirect(req.RedirectTo)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    ident.ID,
		"email": ident.Email,
		"name":  ident.Name,
	})
}

// sanitizeRedirect keeps redirects on-site.
func sanitizeRedirect(p string) string {
	if p == "" {
		return "/dashboard"
	}
	u, err := url.Parse(p)
	if err != nil || u.Host != "" || u.Scheme != "" || !strings.HasPrefix(u.Path, "/") {
		return "/dashboard"
	}
	return u.Path
}
