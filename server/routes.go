package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.StdMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.StdMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.StdMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthToken, ChainMiddleware(s.CliTokenHandler(), s.StdMiddleware(s.RequireCookieSession())...))

	// MCP
	s.RegisterRouteHandler("POST "+RouteMCP, ChainMiddleware(s.MCPHandler(), s.StdMiddleware(s.RequireSession())...))

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
