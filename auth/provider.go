package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pactflow/profile"
)

// ErrProviderDenied signals the provider rejected the credential.
var ErrProviderDenied = errors.New("auth: provider denied credential")

// Provider turns a provider-specific credential into an Identity. The
// signing core never depends on which provider is active; OAuth code
// exchange and QR ticket exchange are interchangeable behind this
// interface.
type Provider interface {
	Name() string
	ResolveIdentity(ctx context.Context, credential string) (profile.Identity, error)
}

type userInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u userInfo) identity() (profile.Identity, error) {
	if u.Sub == "" {
		return profile.Identity{}, fmt.Errorf("auth: provider response missing subject")
	}
	return profile.Identity{ID: u.Sub, Email: u.Email, Name: u.Name}, nil
}

// OAuthProvider exchanges an authorization code against the provider's
// token endpoint and reads the user info from the response.
type OAuthProvider struct {
	ProviderName string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Client       *http.Client
}

func (p *OAuthProvider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "oauth"
}

func (p *OAuthProvider) ResolveIdentity(ctx context.Context, code string) (profile.Identity, error) {
	if code == "" {
		return profile.Identity{}, ErrProviderDenied
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {p.ClientID},
		"client_secret": {p.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return profile.Identity{}, fmt.Errorf("auth: oauth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	info, err := p.doUserInfo(req)
	if err != nil {
		return profile.Identity{}, err
	}
	return info.identity()
}

func (p *OAuthProvider) doUserInfo(req *http.Request) (userInfo, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("auth: oauth exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return userInfo{}, ErrProviderDenied
	}
	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("auth: oauth exchange status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("auth: decode oauth response: %w", err)
	}
	return info, nil
}

// QRProvider exchanges the ticket produced by a completed QR scan for the
// scanner's user info. Mirrors the PC scan-code login flow where the
// browser polls until the phone approves, then posts the ticket here.
type QRProvider struct {
	ExchangeURL string
	AppID       string
	Client      *http.Client
}

func (p *QRProvider) Name() string { return "qr" }

func (p *QRProvider) ResolveIdentity(ctx context.Context, ticket string) (profile.Identity, error) {
	if ticket == "" {
		return profile.Identity{}, ErrProviderDenied
	}

	body, err := json.Marshal(map[string]string{"app_id": p.AppID, "ticket": ticket})
	if err != nil {
		return profile.Identity{}, fmt.Errorf("auth: qr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ExchangeURL, strings.NewReader(string(body)))
	if err != nil {
		return profile.Identity{}, fmt.Errorf("auth: qr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return profile.Identity{}, fmt.Errorf("auth: qr exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return profile.Identity{}, ErrProviderDenied
	}
	if resp.StatusCode != http.StatusOK {
		return profile.Identity{}, fmt.Errorf("auth: qr exchange status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return profile.Identity{}, fmt.Errorf("auth: decode qr response: %w", err)
	}
	return info.identity()
}
