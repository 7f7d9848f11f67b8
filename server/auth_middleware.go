package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/datum-mcp-bridge/auth"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the resolved session id
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyCredential stores the refreshed access token and user id
	ContextKeyCredential ContextKey = "credential"
)

// RequireSession authenticates with the session cookie or, failing that, a
// CLI bearer token.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID := s.sessionFromCookie(r)
			if sessionID == "" {
				sessionID = s.sessionFromBearer(r)
			}
			s.serveAuthenticated(w, r, sessionID, next)
		}
	}
}

// RequireCookieSession authenticates with the browser session cookie only.
func (s *Server) RequireCookieSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.serveAuthenticated(w, r, s.sessionFromCookie(r), next)
		}
	}
}

func (s *Server) serveAuthenticated(w http.ResponseWriter, r *http.Request, sessionID string, next http.HandlerFunc) {
	if sessionID == "" {
		s.writeLoginRequired(w, "Not authenticated")
		return
	}

	cred, err := s.auth.Authenticate(r.Context(), sessionID)
	switch {
	case err == nil:
	case bridgeerrors.Is(err, bridgeerrors.ErrSessionNotFound):
		s.writeLoginRequired(w, "Session not found")
		return
	case bridgeerrors.Is(err, bridgeerrors.ErrSessionExpired):
		s.writeLoginRequired(w, "Session expired")
		return
	default:
		log.Error().Err(err).Msg("failed to resolve session")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
	ctx = context.WithValue(ctx, ContextKeyCredential, cred)
	next(w, r.WithContext(ctx))
}

func (s *Server) sessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// sessionFromBearer maps a CLI token to its session. Unknown and expired
// tokens resolve to no session.
func (s *Server) sessionFromBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	cliToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if cliToken == "" {
		return ""
	}

	sessionID, err := s.auth.ResolveSessionFromCliToken(r.Context(), cliToken)
	if err != nil {
		log.Debug().Err(err).Msg("cli token rejected")
		return ""
	}
	return sessionID
}

func (s *Server) writeLoginRequired(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": reason + ". Open " + s.config.GetBaseURL() + RouteAuthLogin,
	})
}

// CredentialFromContext returns the credential stored by RequireSession.
func CredentialFromContext(ctx context.Context) (auth.Credential, bool) {
	cred, ok := ctx.Value(ContextKeyCredential).(auth.Credential)
	return cred, ok
}

func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	return sessionID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
