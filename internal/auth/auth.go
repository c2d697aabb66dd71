// Package auth provides the identity/session provider: the current user id and
// the bearer token used to scope remote clients.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"tasksync/internal/config"
)

// ErrNoToken indicates no credentials are stored.
var ErrNoToken = errors.New("not logged in")

// ErrTokenExpired indicates the stored token expired and cannot be refreshed.
var ErrTokenExpired = errors.New("token expired (run: tasksync login)")

// Provider supplies the current user and a bearer token for that user.
type Provider interface {
	// UserID returns the authenticated user's id, or false if nobody is logged in.
	UserID(ctx context.Context) (string, bool)

	// Token returns a bearer token, refreshing it if needed.
	Token(ctx context.Context) (string, error)
}

// Subject extracts the "sub" claim from a JWT without verifying its signature.
// The remote store verifies the signature; the client only needs the user id.
func Subject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid token subject: %w", err)
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Static serves a fixed bearer token.
type Static struct {
	Subject string
	Bearer  string
}

// NewStatic creates a Static provider, taking the user id from the token's subject.
func NewStatic(token string) (*Static, error) {
	sub, err := Subject(token)
	if err != nil {
		return nil, err
	}
	return &Static{Subject: sub, Bearer: token}, nil
}

// UserID implements Provider.
func (s *Static) UserID(ctx context.Context) (string, bool) {
	return s.Subject, s.Subject != ""
}

// Token implements Provider.
func (s *Static) Token(ctx context.Context) (string, error) {
	if s.Bearer == "" {
		return "", ErrNoToken
	}
	return s.Bearer, nil
}

// OAuthConfig builds the OAuth client configuration from settings.
// Provider "google" uses Google's endpoints; "custom" requires explicit URLs.
func OAuthConfig(s config.AuthSettings) (*oauth2.Config, error) {
	if s.ClientID == "" {
		return nil, errors.New("auth.client_id is not configured")
	}

	cfg := &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Scopes:       s.Scopes,
	}

	switch s.Provider {
	case "google":
		cfg.Endpoint = google.Endpoint
	case "", "custom":
		if s.AuthURL == "" || s.TokenURL == "" {
			return nil, errors.New("auth.auth_url and auth.token_url are required for a custom provider")
		}
		cfg.Endpoint = oauth2.Endpoint{AuthURL: s.AuthURL, TokenURL: s.TokenURL}
	default:
		return nil, fmt.Errorf("unknown auth provider: %s", s.Provider)
	}
	return cfg, nil
}
