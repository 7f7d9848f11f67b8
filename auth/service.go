package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/sessions"
	"github.com/jrsteele09/datum-mcp-bridge/token"
	"github.com/jrsteele09/datum-mcp-bridge/token/refresh"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultCliTokenTTL is used when no TTL is configured.
const DefaultCliTokenTTL = 10 * time.Minute

// Credential is a usable access token and the user it belongs to.
type Credential = refresh.Credential

// SpecEnsurer builds the cached API description when it is missing.
type SpecEnsurer interface {
	EnsureAvailable(ctx context.Context, token string)
}

// CallbackParams is what the provider sent back, plus what we stored when
// the login started.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string

	ExpectedState string
	CodeVerifier  string
}

// Service composes session storage, token refresh and the identity provider
// into the operations the HTTP layer needs.
type Service struct {
	sessions     *sessions.Manager
	policy       *refresh.Policy
	idp          oauth2.Client
	specs        SpecEnsurer
	cliTokenTTL  time.Duration
	nowTime      func() time.Time
	newSessionID func() string
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithSessionIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) {
		s.newSessionID = gen
	}
}

func WithCliTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cliTokenTTL = ttl
	}
}

// WithSpecEnsurer is called with the fresh access token after each login.
func WithSpecEnsurer(specs SpecEnsurer) ServiceOption {
	return func(s *Service) {
		s.specs = specs
	}
}

func NewService(mgr *sessions.Manager, policy *refresh.Policy, idp oauth2.Client, options ...ServiceOption) (*Service, error) {
	if mgr == nil {
		return nil, errors.New("[NewService] session manager is required")
	}
	if policy == nil {
		return nil, errors.New("[NewService] refresh policy is required")
	}
	if idp == nil {
		return nil, errors.New("[NewService] identity provider client is required")
	}

	s := &Service{
		sessions:     mgr,
		policy:       policy,
		idp:          idp,
		cliTokenTTL:  DefaultCliTokenTTL,
		nowTime:      time.Now,
		newSessionID: func() string { return uuid.New().String() },
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ResolveAccessToken looks the session up and refreshes it when needed.
// A nil AccessToken in the result means the session has expired.
func (s *Service) ResolveAccessToken(ctx context.Context, sessionID string) (Credential, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Credential{}, err
	}
	return s.policy.Ensure(ctx, sessionID, session), nil
}

// Authenticate is ResolveAccessToken that fails with ErrSessionExpired
// instead of returning an empty credential.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (Credential, error) {
	cred, err := s.ResolveAccessToken(ctx, sessionID)
	if err != nil {
		return Credential{}, err
	}
	if cred.AccessToken == nil {
		return Credential{}, bridgeerrors.ErrSessionExpired
	}
	return cred, nil
}

// MintCliToken issues a bearer token for sessionID. A ttl of zero uses the
// configured default.
func (s *Service) MintCliToken(ctx context.Context, sessionID string, ttl time.Duration) (sessions.CliTokenGrant, error) {
	if ttl <= 0 {
		ttl = s.cliTokenTTL
	}
	return s.sessions.CreateCliToken(ctx, sessionID, ttl)
}

// ResolveSessionFromCliToken maps a CLI token back to its session id.
func (s *Service) ResolveSessionFromCliToken(ctx context.Context, cliToken string) (string, error) {
	return s.sessions.ResolveCliToken(ctx, cliToken)
}

// StartLogin begins an authorization code + PKCE login.
func (s *Service) StartLogin() oauth2.AuthRequest {
	return oauth2.NewAuthRequest(s.idp)
}

// CompleteLogin exchanges the authorization code and stores a new session.
// It returns the new session id.
func (s *Service) CompleteLogin(ctx context.Context, params CallbackParams) (string, error) {
	if params.Error != "" {
		return "", fmt.Errorf("authorization failed: %s %s", params.Error, params.ErrorDescription)
	}
	if params.ExpectedState == "" || params.CodeVerifier == "" || params.State != params.ExpectedState {
		return "", bridgeerrors.ErrInvalidState
	}
	if params.Code == "" {
		return "", &bridgeerrors.UsageError{Message: "missing authorization code"}
	}

	tr, err := s.idp.ExchangeCode(ctx, params.Code, params.CodeVerifier)
	if err != nil {
		return "", errors.Wrap(err, "CompleteLogin idp.ExchangeCode")
	}

	session := token.ToSession(tr, s.nowTime())
	if !sessions.Authenticated(&session) {
		return "", bridgeerrors.Wrapf(bridgeerrors.ErrNotAuthenticated, "token response without access token")
	}

	sessionID := s.newSessionID()
	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		return "", errors.Wrap(err, "CompleteLogin sessions.Set")
	}
	log.Info().Str("session", sessionID).Msg("login completed")

	if s.specs != nil {
		s.specs.EnsureAvailable(ctx, tr.AccessToken)
	}
	return sessionID, nil
}

// Logout removes the session and every CLI token issued for it.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}
