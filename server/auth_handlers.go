package server

import (
	"net/http"

	"github.com/jrsteele09/datum-mcp-bridge/auth"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginHandler starts the authorization code + PKCE flow. State and verifier
// ride in cookies until the callback.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := s.auth.StartLogin()
		s.setCookie(w, s.config.GetStateCookieName(), req.State)
		s.setCookie(w, s.config.GetVerifierCookieName(), req.CodeVerifier)
		http.Redirect(w, r, req.URL, http.StatusFound)
	}
}

func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := cookieValue(r, s.config.GetStateCookieName())
		verifier := cookieValue(r, s.config.GetVerifierCookieName())
		if state == "" || verifier == "" {
			http.Error(w, "Missing auth state. Try "+RouteAuthLogin+" again.", http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		sessionID, err := s.auth.CompleteLogin(r.Context(), auth.CallbackParams{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
			ExpectedState:    state,
			CodeVerifier:     verifier,
		})
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			status := http.StatusBadGateway
			if bridgeerrors.Is(err, bridgeerrors.ErrInvalidState) || isUsageError(err) {
				status = http.StatusBadRequest
			}
			http.Error(w, "Authentication failed. Try "+RouteAuthLogin+" again.", status)
			return
		}

		s.clearCookie(w, s.config.GetStateCookieName())
		s.clearCookie(w, s.config.GetVerifierCookieName())
		s.setCookie(w, s.config.GetSessionCookieName(), sessionID)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Authenticated. You can now call " + RouteMCP + "."))
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := cookieValue(r, s.config.GetSessionCookieName()); sessionID != "" {
			if err := s.auth.Logout(r.Context(), sessionID); err != nil {
				log.Error().Err(err).Msg("failed to delete session")
			}
		}
		s.clearCookie(w, s.config.GetSessionCookieName())

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Logged out"))
	}
}

// CliTokenResponse is returned by the CLI token endpoint.
type CliTokenResponse struct {
	Token         string `json:"token"`
	ExpiresAt     int64  `json:"expiresAt"`
	Authorization string `json:"authorization"`
}

// CliTokenHandler mints a short-lived bearer token for the cookie session.
func (s *Server) CliTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := s.auth.MintCliToken(r.Context(), SessionIDFromContext(r.Context()), s.config.GetCliTokenTTL())
		if err != nil {
			log.Error().Err(err).Msg("failed to mint cli token")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		writeJSON(w, http.StatusOK, CliTokenResponse{
			Token:         grant.Token,
			ExpiresAt:     grant.ExpiresAt,
			Authorization: "Bearer " + grant.Token,
		})
	}
}

func isUsageError(err error) bool {
	var usageErr *bridgeerrors.UsageError
	return bridgeerrors.As(err, &usageErr)
}
