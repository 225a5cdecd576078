package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pactflow/profile"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrUnknownProvider signals a login against a provider we don't have.
	ErrUnknownProvider = errors.New("auth: unknown provider")
)

// ProfileStore is the slice of the profile repository the auth service
// needs.
type ProfileStore interface {
	Upsert(ctx context.Context, params profile.UpsertParams) (profile.Profile, error)
	GetByID(ctx context.Context, id string) (profile.Profile, error)
	GetByEmail(ctx context.Context, email string) (profile.Profile, error)
	CreateLocal(ctx context.Context, email, fullName, passwordHash string) (profile.Profile, error)
}

// Service handles session issuance over pluggable identity providers plus
// first-party password accounts.
type Service struct {
	profiles  ProfileStore
	providers map[string]Provider
	jwtSecret []byte
	tokenTTL  time.Duration
}

// LoginResult bundles the session token and resolved identity returned
// after a successful login.
type LoginResult struct {
	Token    string
	Identity profile.Identity
}

// NewService creates the auth service. Providers are optional; password
// login works without any.
func NewService(profiles ProfileStore, jwtSecret string, providers ...Provider) *Service {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Service{
		profiles:  profiles,
		providers: m,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
	}
}

// Register creates a first-party password account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (profile.Profile, error) {
	if len(req.Password) < 8 {
		return profile.Profile{}, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return profile.Profile{}, fmt.Errorf("auth: email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("auth: hash password: %w", err)
	}

	return s.profiles.CreateLocal(ctx, strings.ToLower(req.Email), req.FullName, string(passwordHash))
}

// Login authenticates a password account and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	p, err := s.profiles.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if p.PasswordHash == nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*p.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	ident := identityFromProfile(p)
	token, err := s.generateToken(ident)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}
	return LoginResult{Token: token, Identity: ident}, nil
}

// LoginWithProvider resolves the credential through the named provider,
// refreshes the local profile snapshot, and issues a session token.
func (s *Service) LoginWithProvider(ctx context.Context, req ProviderLoginRequest) (LoginResult, error) {
	p, ok := s.providers[req.Provider]
	if !ok {
		return LoginResult{}, ErrUnknownProvider
	}

	ident, err := p.ResolveIdentity(ctx, req.Credential)
	if err != nil {
		return LoginResult{}, err
	}

	// Provider subjects are arbitrary strings; the profiles table keys on
	// uuid, so derive a stable id from the provider subject when needed.
	if uuid.Validate(ident.ID) != nil {
		ident.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.Name()+":"+ident.ID)).String()
	}

	name := ident.Name
	if name == "" {
		name = ident.Email
	}
	var email *string
	if ident.Email != "" {
		e := ident.Email
		email = &e
	}
	if _, err := s.profiles.Upsert(ctx, profile.UpsertParams{ID: ident.ID, FullName: name, Email: email}); err != nil {
		return LoginResult{}, fmt.Errorf("auth: refresh profile: %w", err)
	}

	token, err := s.generateToken(ident)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}
	return LoginResult{Token: token, Identity: ident}, nil
}

// VerifyToken validates a session token and returns the identity carried in
// its claims.
func (s *Service) VerifyToken(tokenString string) (profile.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return profile.Identity{}, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return profile.Identity{}, fmt.Errorf("auth: invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return profile.Identity{}, fmt.Errorf("auth: invalid subject in token")
	}
	ident := profile.Identity{ID: sub}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		ident.Name = name
	}
	return ident, nil
}

func (s *Service) generateToken(ident profile.Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   ident.ID,
		"email": ident.Email,
		"name":  ident.Name,
		"exp":   now.Add(s.tokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func identityFromProfile(p profile.Profile) profile.Identity {
	ident := profile.Identity{ID: p.ID}
	if p.Email != nil {
		ident.Email = *p.Email
	}
	if p.FullName != nil {
		ident.Name = *p.FullName
	}
	return ident
}
