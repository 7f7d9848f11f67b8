package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "DATUM_DATA_DIR"
	baseURLVar   = "BASE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8787")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Datum MCP")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the public URL of this service (e.g., "https://mcp.example.com").
// Login links and the default OAuth redirect URI are built from it.
func (e EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost"+e.GetPort())
}

// IsProduction reports whether cookies must be marked Secure.
func (e EnvVars) IsProduction() bool {
	env := strings.ToLower(e.GetEnv())
	return env == "production" || env == "prod"
}

func (e EnvVars) dataFile(envVar, name string) string {
	return GetEnv(envVar, filepath.Join(e.GetDataFolder(), name))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvMillis reads a duration expressed in milliseconds.
func GetEnvMillis(envVar string, defaultValue time.Duration) time.Duration {
	value, err := strconv.ParseInt(os.Getenv(envVar), 10, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(value) * time.Millisecond
}

// GetEnvFlag is true only when the variable is set to "1".
func GetEnvFlag(envVar string) bool {
	return os.Getenv(envVar) == "1"
}
