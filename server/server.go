package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/datum-mcp-bridge/auth"
	"github.com/jrsteele09/datum-mcp-bridge/internal/config"
	"github.com/jrsteele09/datum-mcp-bridge/internal/metrics"
	"github.com/jrsteele09/datum-mcp-bridge/sandbox"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Name and version reported to MCP clients.
const (
	mcpServerName    = "datum-api"
	mcpServerVersion = "0.1.0"
)

// Dependencies are the collaborators the HTTP layer drives.
type Dependencies struct {
	Auth      *auth.Service
	Executor  *sandbox.Executor
	APIClient *sandbox.APIClient
	Metrics   *metrics.MetricsCollector
	Tracer    trace.Tracer // optional
}

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.Service
	executor  *sandbox.Executor
	apiClient *sandbox.APIClient
	metrics   *metrics.MetricsCollector
	tracer    trace.Tracer
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if deps.Executor == nil || deps.APIClient == nil {
		return nil, fmt.Errorf("[Server New] sandbox executor and API client are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetricsCollector()
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		auth:      deps.Auth,
		executor:  deps.Executor,
		apiClient: deps.APIClient,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

func logRequest(method, path string, status int, elapsed time.Duration) {
	log.Debug().Msgf("[%-19s] %s %s %s", colouredMethod(method), path, colouredStatus(status), elapsed.Round(time.Millisecond))
}
