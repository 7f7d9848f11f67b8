package config

import (
	"strings"
	"time"
)

type Datum struct {
	EnvVars
}

var _ DatumConfig = Datum{}

func (Datum) GetAPIBase() string {
	return GetEnv("DATUM_API_BASE", "https://api.datum.net")
}

func (Datum) GetOpenAPIIndexPath() string {
	return GetEnv("DATUM_OPENAPI_INDEX_PATH", "/openapi/v3")
}

// GetOpenAPIResources returns the resource allow-list; nil means all resources.
func (Datum) GetOpenAPIResources() []string {
	raw := GetEnv("DATUM_OPENAPI_RESOURCES", "")
	if raw == "" {
		return nil
	}
	var resources []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			resources = append(resources, r)
		}
	}
	return resources
}

func (Datum) GetOpenAPIMaxResources() int {
	return GetEnvInt("DATUM_OPENAPI_MAX_RESOURCES", 200)
}

func (Datum) GetOpenAPIToken() string {
	return GetEnv("DATUM_OPENAPI_TOKEN", "")
}

func (Datum) GetOpenAPIRefreshInterval() time.Duration {
	return GetEnvMillis("OPENAPI_REFRESH_INTERVAL_MS", 24*time.Hour)
}

func (d Datum) GetSpecPath() string {
	return d.dataFile("DATUM_SPEC_PATH", "spec.json")
}

func (d Datum) GetProductsPath() string {
	return d.dataFile("DATUM_PRODUCTS_PATH", "products.json")
}

func (d Datum) GetStorePath() string {
	return d.dataFile("DATUM_TOKEN_STORE_PATH", "sessions.json")
}

type Sandbox struct{}

var _ SandboxConfig = Sandbox{}

// GetSandboxTimeout is zero unless configured; zero means no limit.
func (Sandbox) GetSandboxTimeout() time.Duration {
	return GetEnvMillis("SANDBOX_TIMEOUT_MS", 0)
}

func (Sandbox) GetMaxOutputChars() int {
	return GetEnvInt("MCP_MAX_OUTPUT_CHARS", 100000)
}

type Logging struct{}

var _ LoggingConfig = Logging{}

func (Logging) GetLogRequests() bool     { return GetEnvFlag("MCP_LOG_REQUESTS") }
func (Logging) GetLogBodies() bool       { return GetEnvFlag("MCP_LOG_BODIES") }
func (Logging) GetLogAPIRequests() bool  { return GetEnvFlag("MCP_LOG_API_REQUESTS") }
func (Logging) GetLogAPIResponses() bool { return GetEnvFlag("MCP_LOG_API_RESPONSES") }
