package token

import (
	"time"

	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/sessions"
)

// ToSession converts a provider token set into a session record.
// The user id is derived here, once per grant, from the identity token.
func ToSession(tr *oauth2.TokenResponse, now time.Time) sessions.Session {
	s := sessions.Session{
		AccessToken:  utils.NonEmpty(tr.AccessToken),
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IdToken,
		UpdatedAt:    now.UnixMilli(),
	}
	if tr.ExpiresIn > 0 {
		s.ExpiresAt = utils.Ptr(now.Unix() + tr.ExpiresIn)
	}
	if tr.IdToken != nil {
		s.UserID = SubjectFromIDToken(*tr.IdToken)
	}
	return s
}
