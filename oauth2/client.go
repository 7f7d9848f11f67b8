package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	xoauth2 "golang.org/x/oauth2"
)

// DiscoverConfig identifies this service to the identity provider.
type DiscoverConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string // empty for public clients
	RedirectURL  string
	Scopes       []string
}

var _ Client = (*OIDCClient)(nil)

// OIDCClient talks to an OpenID Connect provider found through discovery.
type OIDCClient struct {
	provider *oidc.Provider
	config   *xoauth2.Config
	verifier *oidc.IDTokenVerifier
	nowFunc  func() time.Time
}

// Discover fetches the provider's discovery document and returns a client bound to it.
func Discover(ctx context.Context, cfg DiscoverConfig) (*OIDCClient, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	return &OIDCClient{
		provider: provider,
		config: &xoauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		nowFunc:  time.Now,
	}, nil
}

// NewAuthRequest generates state and a PKCE verifier and builds the login URL.
func NewAuthRequest(c Client) AuthRequest {
	state := generateRandomString(32)
	verifier := xoauth2.GenerateVerifier()
	return AuthRequest{
		URL:          c.AuthCodeURL(state, verifier),
		State:        state,
		CodeVerifier: verifier,
	}
}

func (c *OIDCClient) AuthCodeURL(state, codeVerifier string) string {
	return c.config.AuthCodeURL(state, xoauth2.S256ChallengeOption(codeVerifier))
}

func (c *OIDCClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	tok, err := c.config.Exchange(ctx, code, xoauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	resp := c.fromToken(tok)
	if resp.IdToken != nil {
		if _, err := c.verifier.Verify(ctx, *resp.IdToken); err != nil {
			return nil, fmt.Errorf("ID token verification failed: %w", err)
		}
	}
	return resp, nil
}

func (c *OIDCClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	tok, err := c.config.TokenSource(ctx, &xoauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh grant failed: %w", err)
	}
	return c.fromToken(tok), nil
}

func (c *OIDCClient) fromToken(tok *xoauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: utils.NonEmpty(tok.RefreshToken),
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(tok.Expiry.Sub(c.nowFunc()).Round(time.Second).Seconds())
	}
	if rawIDToken, ok := tok.Extra("id_token").(string); ok {
		resp.IdToken = utils.NonEmpty(rawIDToken)
	}
	return resp
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
