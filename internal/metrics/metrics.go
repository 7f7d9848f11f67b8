package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datum_mcp"

// MetricsCollector holds the bridge's Prometheus metrics on a custom registry.
type MetricsCollector struct {
	Registry *prometheus.Registry

	SandboxExecutionsTotal   *prometheus.CounterVec
	SandboxExecutionDuration *prometheus.HistogramVec

	APIRequestsTotal *prometheus.CounterVec

	TokenRefreshesTotal *prometheus.CounterVec
	SpecRefreshesTotal  *prometheus.CounterVec
	StoreWritesTotal    *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		SandboxExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total sandbox executions.",
		}, []string{"profile", "status"}),

		SandboxExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Sandbox execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"profile"}),

		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datum_api",
			Name:      "requests_total",
			Help:      "Total Datum API requests made from sandboxed code.",
		}, []string{"method", "status_class"}),

		TokenRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Total refresh grants attempted.",
		}, []string{"result"}),

		SpecRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "openapi",
			Name:      "refreshes_total",
			Help:      "Total OpenAPI spec rebuilds.",
		}, []string{"result"}),

		StoreWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Total session document writes.",
		}, []string{"result"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.SandboxExecutionsTotal,
		m.SandboxExecutionDuration,
		m.APIRequestsTotal,
		m.TokenRefreshesTotal,
		m.SpecRefreshesTotal,
		m.StoreWritesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) ObserveSandbox(profile, status string, elapsed time.Duration) {
	m.SandboxExecutionsTotal.WithLabelValues(profile, status).Inc()
	m.SandboxExecutionDuration.WithLabelValues(profile).Observe(elapsed.Seconds())
}

func (m *MetricsCollector) ObserveAPIRequest(method string, status int) {
	m.APIRequestsTotal.WithLabelValues(method, fmt.Sprintf("%dxx", status/100)).Inc()
}

func (m *MetricsCollector) ObserveTokenRefresh(result string) {
	m.TokenRefreshesTotal.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) ObserveSpecRefresh(result string) {
	m.SpecRefreshesTotal.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) ObserveStoreWrite(result string) {
	m.StoreWritesTotal.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
