package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/profile"
	"pactflow/signature"
	"pactflow/signing"
	"pactflow/template"
)

const goodToken = "good-token"

var testIdentity = profile.Identity{ID: uuid.NewString(), Email: "alice@example.com", Name: "Alice"}

func newTestServer(signingSvc SigningService, limit *IPRateLimiter) *Server {
	return NewServer(signingSvc, &stubAuth{}, &stubTemplates{}, limit)
}

func doRequest(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateAgreement(t *testing.T) {
	created := agreement.Agreement{ID: uuid.NewString(), Status: agreement.StatusPending, CreatedAt: time.Now()}
	svc := &stubSigning{createResult: created}
	srv := newTestServer(svc, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/agreements", goodToken, `{"title":"T","content":"C"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != created.ID {
		t.Fatalf("unexpected id %q", resp["id"])
	}
	if svc.createIdent.ID != testIdentity.ID {
		t.Fatalf("handler passed wrong identity: %+v", svc.createIdent)
	}
}

func TestCreateAgreement_ErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", agreement.NewValidationError("title required"), http.StatusBadRequest},
		{"unauthenticated service", signing.ErrNotAuthenticated, http.StatusUnauthorized},
		{"unknown failure", errors.New("pg down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&stubSigning{createErr: tc.err}, nil)
			rec := doRequest(t, srv, http.MethodPost, "/api/agreements", goodToken, `{"title":"","content":""}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateAgreement_RequiresSession(t *testing.T) {
	srv := newTestServer(&stubSigning{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/agreements", "", `{"title":"T","content":"C"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/agreements", "bogus", `{"title":"T","content":"C"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}
}

func TestListAgreements(t *testing.T) {
	newer := agreement.Agreement{
		ID: uuid.NewString(), Title: "Newer", Content: "secret body",
		Status: agreement.StatusPending, CreatedAt: time.Now(),
	}
	older := agreement.Agreement{
		ID: uuid.NewString(), Title: "Older", Content: "secret body",
		Status: agreement.StatusPending, CreatedAt: time.Now().Add(-time.Hour),
	}
	svc := &stubSigning{listResult: []agreement.Agreement{newer, older}}
	srv := newTestServer(svc, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/agreements", goodToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.listCreatorID != testIdentity.ID {
		t.Fatalf("handler listed for %q, want session identity %q", svc.listCreatorID, testIdentity.ID)
	}

	var resp struct {
		Items []agreementResponse `json:"items"`
		Total int                 `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	// The service's newest-first order passes through untouched.
	if resp.Items[0].ID != newer.ID || resp.Items[1].ID != older.ID {
		t.Fatalf("order not preserved: %+v", resp.Items)
	}
	// Dashboard listings omit agreement bodies.
	for _, item := range resp.Items {
		if item.Content != "" {
			t.Fatalf("content leaked into listing: %+v", item)
		}
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/agreements", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: status = %d", rec.Code)
	}
}

func TestSignView_PublicAndHidden(t *testing.T) {
	id := uuid.NewString()
	view := signing.View{
		Agreement: agreement.Agreement{ID: id, Title: "T", Content: "C", Status: agreement.StatusPending, CreatedAt: time.Now()},
		Signatures: []signature.Signature{
			{SignerID: uuid.NewString(), SignerName: "Alice", SignedAt: time.Now()},
		},
		Verified: true,
	}
	srv := newTestServer(&stubSigning{view: view}, nil)

	// No session required for viewing.
	rec := doRequest(t, srv, http.MethodGet, "/api/sign/"+id, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Verified   bool `json:"verified"`
		Signatures []signatureResponse
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Verified || len(resp.Signatures) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	srv = newTestServer(&stubSigning{viewErr: agreement.ErrNotFound}, nil)
	rec = doRequest(t, srv, http.MethodGet, "/api/sign/"+uuid.NewString(), "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("hidden agreement: status = %d", rec.Code)
	}
}

func TestSign(t *testing.T) {
	id := uuid.NewString()
	srv := newTestServer(&stubSigning{signResult: signature.Signature{ID: uuid.NewString()}}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/sign/"+id, goodToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/sign/"+id, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous sign: status = %d", rec.Code)
	}
}

func TestSign_DuplicateConflict(t *testing.T) {
	srv := newTestServer(&stubSigning{signErr: signature.ErrAlreadySigned}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/sign/"+uuid.NewString(), goodToken, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "You have already signed." {
		t.Fatalf("unexpected message %q", resp["error"])
	}
}

func TestSign_RateLimited(t *testing.T) {
	limit := NewIPRateLimiter(1, 1)
	srv := newTestServer(&stubSigning{signResult: signature.Signature{ID: uuid.NewString()}}, limit)
	id := uuid.NewString()

	first := doRequest(t, srv, http.MethodPost, "/api/sign/"+id, goodToken, "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", first.Code)
	}
	second := doRequest(t, srv, http.MethodPost, "/api/sign/"+id, goodToken, "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRegisterEndpoint(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusCreated},
		{"weak password", auth.ErrWeakPassword, http.StatusBadRequest},
		{"duplicate", profile.ErrDuplicateEmail, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&stubSigning{}, &stubAuth{registerErr: tc.err}, &stubTemplates{}, nil)
			rec := doRequest(t, srv, http.MethodPost, "/api/auth/register", "", `{"email":"a@example.com","password":"pw","full_name":"A"}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	srv := newTestServer(&stubSigning{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/auth/login", "", `{"email":"a@example.com","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	if session == nil || session.Value != goodToken {
		t.Fatalf("expected session cookie with token, got %+v", session)
	}
	if !session.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := NewServer(&stubSigning{}, &stubAuth{loginErr: auth.ErrInvalidCredentials}, &stubTemplates{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/auth/login", "", `{"email":"a@example.com","password":"pw"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOAuthCallback(t *testing.T) {
	srv := newTestServer(&stubSigning{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/auth/callback?code=good&redirectTo=/sign/abc", "", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/sign/abc" {
		t.Fatalf("redirect = %q", loc)
	}

	srv = NewServer(&stubSigning{}, &stubAuth{providerErr: auth.ErrProviderDenied}, &stubTemplates{}, nil)
	rec = doRequest(t, srv, http.MethodGet, "/api/auth/callback?code=bad", "", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=auth_callback_error") {
		t.Fatalf("redirect = %q", loc)
	}
}

func TestSanitizeRedirect(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/dashboard"},
		{"/sign/abc", "/sign/abc"},
		{"https://evil.example.com/phish", "/dashboard"},
		{"//evil.example.com", "/dashboard"},
		{"no-leading-slash", "/dashboard"},
	}
	for _, tc := range cases {
		if got := sanitizeRedirect(tc.in); got != tc.want {
			t.Errorf("sanitizeRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhoAmI(t *testing.T) {
	srv := newTestServer(&stubSigning{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/auth/session", goodToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != testIdentity.ID || resp["email"] != testIdentity.Email {
		t.Fatalf("unexpected identity payload: %v", resp)
	}
}

func TestPublishTemplate(t *testing.T) {
	created := agreement.Agreement{ID: uuid.NewString(), Status: agreement.StatusPending, CreatedAt: time.Now()}
	svc := &stubSigning{createResult: created}
	srv := newTestServer(svc, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/templates/"+uuid.NewString()+"/publish", goodToken, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	srv = newTestServer(&stubSigning{createErr: template.ErrNotFound}, nil)
	rec = doRequest(t, srv, http.MethodPost, "/api/templates/"+uuid.NewString()+"/publish", goodToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign template: status = %d", rec.Code)
	}
}

// ---- stubs ----

type stubSigning struct {
	createResult agreement.Agreement
	createErr    error
	createIdent  profile.Identity

	listResult    []agreement.Agreement
	listCreatorID string

	signResult signature.Signature
	signErr    error

	view    signing.View
	viewErr error
}

func (s *stubSigning) CreateAndPublish(_ context.Context, ident profile.Identity, _, _ string) (agreement.Agreement, error) {
	s.createIdent = ident
	return s.createResult, s.createErr
}

func (s *stubSigning) CreateFromTemplate(_ context.Context, ident profile.Identity, _ string) (agreement.Agreement, error) {
	s.createIdent = ident
	return s.createResult, s.createErr
}

func (s *stubSigning) Sign(_ context.Context, _ profile.Identity, _ string) (signature.Signature, error) {
	return s.signResult, s.signErr
}

func (s *stubSigning) SignView(_ context.Context, _ string) (signing.View, error) {
	return s.view, s.viewErr
}

func (s *stubSigning) ListByCreator(_ context.Context, creatorID string) ([]agreement.Agreement, error) {
	s.listCreatorID = creatorID
	return s.listResult, nil
}

type stubAuth struct {
	registerErr error
	loginErr    error
	providerErr error
}

func (s *stubAuth) Register(_ context.Context, _ auth.RegisterRequest) (profile.Profile, error) {
	if s.registerErr != nil {
		return profile.Profile{}, s.registerErr
	}
	return profile.Profile{ID: uuid.NewString()}, nil
}

func (s *stubAuth) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	if s.loginErr != nil {
		return auth.LoginResult{}, s.loginErr
	}
	return auth.LoginResult{Token: goodToken, Identity: testIdentity}, nil
}

func (s *stubAuth) LoginWithProvider(_ context.Context, _ auth.ProviderLoginRequest) (auth.LoginResult, error) {
	if s.providerErr != nil {
		return auth.LoginResult{}, s.providerErr
	}
	return auth.LoginResult{Token: goodToken, Identity: testIdentity}, nil
}

func (s *stubAuth) VerifyToken(token string) (profile.Identity, error) {
	if token != goodToken {
		return profile.Identity{}, errors.New("invalid token")
	}
	return testIdentity, nil
}

type stubTemplates struct{}

func (s *stubTemplates) Create(_ context.Context, userID, title, content string) (template.Template, error) {
	return template.Template{ID: uuid.NewString(), UserID: userID, Title: title, Content: content, CreatedAt: time.Now()}, nil
}

func (s *stubTemplates) ListByUser(_ context.Context, _ string) ([]template.Template, error) {
	return []template.Template{}, nil
}
