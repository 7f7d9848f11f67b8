package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth = "/health"

	// Auth Routes - browser login flow
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteAuthLogout   = "/auth/logout"

	// Auth Routes - CLI bearer tokens
	RouteAuthToken = "/auth/token"

	// MCP streamable HTTP endpoint
	RouteMCP = "/mcp"

	RouteMetrics = "/metrics"
)
