package config

import (
	"net/url"
	"strings"
	"time"
)

const (
	issuerVar        = "AUTH_OIDC_ISSUER"
	clientIDVar      = "AUTH_OIDC_CLIENT_ID"
	clientSecretVar  = "AUTH_OIDC_CLIENT_SECRET"
	scopesVar        = "AUTH_OIDC_SCOPES"
	redirectURIVar   = "AUTH_OIDC_REDIRECT_URI"
	refreshWindowVar = "AUTH_REFRESH_WINDOW_MS"
	cliTokenTTLVar   = "MCP_CLI_TOKEN_TTL_MS"

	defaultIssuer   = "https://auth.datum.net"
	stagingClientID = "325848904128073754"
	prodClientID    = "328728232771788043"
)

type OAuthConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetRedirectURI() string
	GetRefreshWindow() time.Duration
	GetCliTokenTTL() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetIssuer() string {
	return GetEnv(issuerVar, defaultIssuer)
}

// GetClientID falls back to the well-known Datum client for the issuer's environment.
func (o OAuth) GetClientID() string {
	return GetEnv(clientIDVar, DeriveClientID(o.GetIssuer()))
}

func (OAuth) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

func (OAuth) GetScopes() []string {
	scopes := strings.Fields(GetEnv(scopesVar, ""))
	if len(scopes) == 0 {
		return []string{"openid", "profile", "email", "offline_access"}
	}
	return scopes
}

func (OAuth) GetRedirectURI() string {
	return GetEnv(redirectURIVar, EnvVars{}.GetBaseURL()+"/auth/callback")
}

func (OAuth) GetRefreshWindow() time.Duration {
	return GetEnvMillis(refreshWindowVar, time.Hour)
}

func (OAuth) GetCliTokenTTL() time.Duration {
	return GetEnvMillis(cliTokenTTLVar, 10*time.Minute)
}

func DeriveClientID(issuer string) string {
	u, err := url.Parse(issuer)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	switch {
	case strings.HasSuffix(host, ".staging.env.datum.net"):
		return stagingClientID
	case strings.HasSuffix(host, ".datum.net"):
		return prodClientID
	}
	return ""
}
