package sessions

import (
	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/store"
)

// Session binds an opaque server-generated id to an OAuth token set.
// AccessToken nil means "not currently authenticated". UserID is derived once
// from the identity token when the token set is created and is only replaced
// by a later token set.
type Session = store.SessionRecord

// CliToken is a short-lived bearer credential standing in for the session
// cookie of a non-browser caller.
type CliToken = store.CliTokenRecord

// CliTokenGrant is what a caller receives after exchanging a session.
type CliTokenGrant struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // epoch milliseconds
}

// Authenticated reports whether s carries an access token.
func Authenticated(s *Session) bool {
	return s != nil && utils.Value(s.AccessToken) != ""
}
