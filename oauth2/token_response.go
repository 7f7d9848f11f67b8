package oauth2

// TokenResponse is the token set returned by the identity provider for the
// authorization code and refresh grants (RFC 6749 §5.1).
type TokenResponse struct {
	// AccessToken is the bearer credential sent to the Datum API.
	// Usage: Authorization: Bearer <access_token>
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque token used for the next refresh grant.
	// Nil when the provider did not issue (or did not rotate) one.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. Zero means the
	// provider did not say; the session then never expires locally.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// IdToken is the OpenID Connect ID token. Only its subject claim is used,
	// to derive the user id once per grant.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType is normally "Bearer".
	TokenType string `json:"token_type,omitempty"`
}
