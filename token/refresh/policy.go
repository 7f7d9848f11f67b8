package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/sessions"
	"github.com/jrsteele09/datum-mcp-bridge/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultWindow is how long before expiry an access token is renewed.
const DefaultWindow = time.Hour

// Credential is what callers of the API need: a usable access token and the
// user it belongs to. AccessToken nil means the caller must log in again.
type Credential struct {
	AccessToken *string `json:"accessToken"`
	UserID      *string `json:"userId"`
}

// Decision is the outcome of inspecting a session before use.
type Decision int

const (
	// Unauthenticated means no usable token and no way to get one.
	Unauthenticated Decision = iota
	// UseStored means the stored access token is returned unchanged.
	UseStored
	// RunGrant means a refresh grant must be attempted.
	RunGrant
)

// Refresh outcomes reported to the observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Decide applies the refresh rules to s at now. ExpiresAt is in seconds.
func Decide(s *sessions.Session, now time.Time, window time.Duration) Decision {
	if !sessions.Authenticated(s) {
		return Unauthenticated
	}
	if s.ExpiresAt == nil {
		return UseStored
	}

	refreshAt := *s.ExpiresAt*1000 - window.Milliseconds()
	if now.UnixMilli() < refreshAt {
		return UseStored
	}
	if utils.Value(s.RefreshToken) == "" {
		return Unauthenticated
	}
	return RunGrant
}

// Policy keeps session access tokens fresh.
type Policy struct {
	sessions *sessions.Manager
	idp      oauth2.Client
	window   time.Duration
	nowFunc  func() time.Time
	observe  func(outcome string)
	group    singleflight.Group
}

type PolicyOption func(*Policy)

func WithNowFunc(now func() time.Time) PolicyOption {
	return func(p *Policy) {
		p.nowFunc = now
	}
}

func WithWindow(window time.Duration) PolicyOption {
	return func(p *Policy) {
		p.window = window
	}
}

// WithObserver is called once per refresh grant with its outcome.
func WithObserver(observe func(outcome string)) PolicyOption {
	return func(p *Policy) {
		p.observe = observe
	}
}

func NewPolicy(mgr *sessions.Manager, idp oauth2.Client, options ...PolicyOption) *Policy {
	p := &Policy{
		sessions: mgr,
		idp:      idp,
		window:   DefaultWindow,
		nowFunc:  time.Now,
		observe:  func(string) {},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Window returns the configured refresh window.
func (p *Policy) Window() time.Duration {
	return p.window
}

// Ensure returns a usable credential for s, refreshing it first when the
// access token is inside the refresh window. A failed refresh persists
// nothing and yields a nil access token.
func (p *Policy) Ensure(ctx context.Context, sessionID string, s *sessions.Session) Credential {
	switch Decide(s, p.nowFunc(), p.window) {
	case UseStored:
		return Credential{AccessToken: s.AccessToken, UserID: s.UserID}
	case RunGrant:
		// Callers racing on the same session share one grant.
		v, _, _ := p.group.Do(sessionID, func() (interface{}, error) {
			return p.refresh(context.WithoutCancel(ctx), sessionID, s), nil
		})
		return v.(Credential)
	default:
		var userID *string
		if s != nil {
			userID = s.UserID
		}
		return Credential{UserID: userID}
	}
}

func (p *Policy) refresh(ctx context.Context, sessionID string, s *sessions.Session) Credential {
	failed := Credential{UserID: s.UserID}

	tr, err := p.idp.Refresh(ctx, *s.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("token refresh failed")
		p.observe(OutcomeFailure)
		return failed
	}

	now := p.nowFunc()
	next := token.ToSession(tr, now)
	if next.RefreshToken == nil {
		next.RefreshToken = s.RefreshToken
	}
	if next.IDToken == nil {
		next.IDToken = s.IDToken
		next.UserID = s.UserID
	}
	next.UpdatedAt = now.UnixMilli()

	if err := p.sessions.Update(ctx, sessionID, next); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to persist refreshed session")
		p.observe(OutcomeFailure)
		return failed
	}

	log.Debug().Str("session", sessionID).Msg("access token refreshed")
	p.observe(OutcomeSuccess)
	return Credential{AccessToken: next.AccessToken, UserID: next.UserID}
}
