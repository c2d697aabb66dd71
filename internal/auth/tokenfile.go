package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// storedToken is the on-disk token format.
// oauth2.Token does not serialize its extras, so the id_token is kept alongside.
type storedToken struct {
	*oauth2.Token
	IDToken string `json:"id_token,omitempty"`
}

// TokenFile is a Provider backed by token.json.
// When an OAuth config is set, expired tokens with a refresh token are refreshed
// and the refreshed token is written back.
type TokenFile struct {
	path  string
	oauth *oauth2.Config

	mu sync.Mutex
}

// NewTokenFile creates a provider for the token at path.
// oauthCfg may be nil, in which case tokens are never refreshed.
func NewTokenFile(path string, oauthCfg *oauth2.Config) *TokenFile {
	return &TokenFile{path: path, oauth: oauthCfg}
}

// UserID implements Provider.
// It reads the subject of the stored token without refreshing it.
func (p *TokenFile) UserID(ctx context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := loadToken(p.path)
	if err != nil {
		return "", false
	}
	sub, err := Subject(bearer(st))
	if err != nil {
		return "", false
	}
	return sub, true
}

// Token implements Provider.
func (p *TokenFile) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := loadToken(p.path)
	if err != nil {
		return "", err
	}

	if st.Valid() {
		return bearer(st), nil
	}
	if p.oauth == nil || st.RefreshToken == "" {
		return "", ErrTokenExpired
	}

	fresh, err := p.oauth.TokenSource(ctx, st.Token).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	refreshed := newStoredToken(fresh)
	// Providers may omit the id_token on refresh; the subject stays the same.
	if refreshed.IDToken == "" {
		refreshed.IDToken = st.IDToken
	}
	if err := saveStored(p.path, refreshed); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}
	return bearer(refreshed), nil
}

// Valid reports whether a usable token can be obtained.
func (p *TokenFile) Valid(ctx context.Context) bool {
	_, err := p.Token(ctx)
	return err == nil
}

// loadToken reads a stored token. A missing file returns ErrNoToken.
func loadToken(path string) (*storedToken, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	st := &storedToken{Token: &oauth2.Token{}}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	if st.AccessToken == "" && st.IDToken == "" {
		return nil, ErrNoToken
	}
	return st, nil
}

// SaveToken saves an OAuth token to a file with mode 0600, keeping its id_token extra.
func SaveToken(path string, token *oauth2.Token) error {
	return saveStored(path, newStoredToken(token))
}

func newStoredToken(token *oauth2.Token) *storedToken {
	st := &storedToken{Token: token}
	if idt, ok := token.Extra("id_token").(string); ok && idt != "" {
		st.IDToken = idt
	}
	return st
}

func saveStored(path string, st *storedToken) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// bearer picks the credential sent to the remote store: the OIDC id token
// when the provider issued one, otherwise the access token.
func bearer(st *storedToken) string {
	if st.IDToken != "" {
		return st.IDToken
	}
	return st.AccessToken
}
