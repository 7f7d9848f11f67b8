package config

type SecurityConfig interface {
	GetSessionCookieName() string
	GetStateCookieName() string
	GetVerifierCookieName() string
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionCookieName() string {
	return GetEnv("AUTH_SESSION_COOKIE", "datum_mcp_session")
}

func (Security) GetStateCookieName() string {
	return GetEnv("AUTH_STATE_COOKIE", "datum_mcp_state")
}

func (Security) GetVerifierCookieName() string {
	return GetEnv("AUTH_VERIFIER_COOKIE", "datum_mcp_verifier")
}

func (Security) GetSecureCookies() bool {
	return EnvVars{}.IsProduction()
}
