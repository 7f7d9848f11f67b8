package oauth2

import "context"

// Client is the identity provider contract the bridge depends on. Only the
// authorization code grant and the refresh grant reach the network.
type Client interface {
	// AuthCodeURL builds the authorization endpoint URL for a PKCE (S256) login.
	AuthCodeURL(state, codeVerifier string) string

	// ExchangeCode performs the authorization code grant.
	// The caller has already checked state against the value it issued.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error)

	// Refresh performs the refresh token grant.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// AuthRequest is the per-login state a caller must keep until the callback.
type AuthRequest struct {
	URL          string
	State        string
	CodeVerifier string
}

// CodeMethodTypeS256 is the only PKCE method used.
// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
const CodeMethodTypeS256 = "S256"
