package config

import (
	"strconv"
)

type TracingConfig interface {
	GetTracingEnabled() bool
	GetTracingEndpoint() string
	GetTracingProtocol() string
	GetTracingInsecure() bool
	GetTracingSampleRate() float64
	GetServiceName() string
}

type Tracing struct{}

var _ TracingConfig = Tracing{}

func (Tracing) GetTracingEnabled() bool {
	return GetEnvFlag("OTEL_TRACING_ENABLED")
}

func (Tracing) GetTracingEndpoint() string {
	return GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
}

// GetTracingProtocol is "grpc" or "http".
func (Tracing) GetTracingProtocol() string {
	return GetEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
}

func (Tracing) GetTracingInsecure() bool {
	return GetEnvFlag("OTEL_EXPORTER_OTLP_INSECURE")
}

func (Tracing) GetTracingSampleRate() float64 {
	rate, err := strconv.ParseFloat(GetEnv("OTEL_TRACES_SAMPLE_RATE", "1"), 64)
	if err != nil || rate <= 0 {
		return 1
	}
	return rate
}

func (Tracing) GetServiceName() string {
	return GetEnv("OTEL_SERVICE_NAME", "datum-mcp")
}
