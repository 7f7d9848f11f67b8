package config

import (
	"time"

	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	DatumConfig
	SandboxConfig
	LoggingConfig
	TracingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetDataFolder() string
	GetEnv() string
}

type DatumConfig interface {
	GetAPIBase() string
	GetOpenAPIIndexPath() string
	GetOpenAPIResources() []string
	GetOpenAPIMaxResources() int
	GetOpenAPIToken() string
	GetOpenAPIRefreshInterval() time.Duration
	GetSpecPath() string
	GetProductsPath() string
	GetStorePath() string
}

type SandboxConfig interface {
	GetSandboxTimeout() time.Duration
	GetMaxOutputChars() int
}

type LoggingConfig interface {
	GetLogRequests() bool
	GetLogBodies() bool
	GetLogAPIRequests() bool
	GetLogAPIResponses() bool
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Datum
	Sandbox
	Logging
	Tracing
}

func New() Config {
	return mainConfig{}
}

// Validate reports the configuration the process cannot serve traffic without.
func Validate(c Config) error {
	if c.GetIssuer() == "" {
		return &bridgeerrors.ConfigError{Field: issuerVar, Reason: "is required"}
	}
	if c.GetClientID() == "" {
		return &bridgeerrors.ConfigError{
			Field:  clientIDVar,
			Reason: "is required (or use a known Datum issuer to derive a default client id)",
		}
	}
	return nil
}
