package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/jrsteele09/datum-mcp-bridge/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Manager performs session and CLI token operations against the store.
// Every write is a load, mutate and save step admitted through the store's
// write order.
type Manager struct {
	repo     store.Repo
	nowFunc  func() time.Time
	newToken func() string
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithTokenGenerator overrides CLI token generation.
func WithTokenGenerator(gen func() string) ManagerOption {
	return func(m *Manager) {
		m.newToken = gen
	}
}

func NewManager(repo store.Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:     repo,
		nowFunc:  time.Now,
		newToken: func() string { return uuid.New().String() },
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Get returns the session, or ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	doc, err := m.repo.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Get repo.Load")
	}
	s, ok := doc.Sessions[sessionID]
	if !ok {
		return nil, bridgeerrors.ErrSessionNotFound
	}
	return &s, nil
}

// Set inserts or replaces the session, stamping UpdatedAt.
func (m *Manager) Set(ctx context.Context, sessionID string, s Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	s.UpdatedAt = m.nowFunc().UnixMilli()
	return m.put(ctx, sessionID, s)
}

// Update replaces the session verbatim; the caller owns UpdatedAt.
func (m *Manager) Update(ctx context.Context, sessionID string, s Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	return m.put(ctx, sessionID, s)
}

func (m *Manager) put(ctx context.Context, sessionID string, s Session) error {
	err := m.repo.Update(ctx, func(doc *store.Document) error {
		doc.Sessions[sessionID] = s
		return nil
	})
	return errors.Wrap(err, "put repo.Update")
}

// Delete removes the session and every CLI token pointing at it.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	removed := 0
	err := m.repo.Update(ctx, func(doc *store.Document) error {
		delete(doc.Sessions, sessionID)
		for token, entry := range doc.CliTokens {
			if entry.SessionID == sessionID {
				delete(doc.CliTokens, token)
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "Delete repo.Update")
	}
	log.Debug().Int("cli_tokens_removed", removed).Msg("session deleted")
	return nil
}

// CreateCliToken mints an unguessable token for sessionID valid for ttl.
func (m *Manager) CreateCliToken(ctx context.Context, sessionID string, ttl time.Duration) (CliTokenGrant, error) {
	grant := CliTokenGrant{
		Token:     m.newToken(),
		ExpiresAt: m.nowFunc().Add(ttl).UnixMilli(),
	}
	err := m.repo.Update(ctx, func(doc *store.Document) error {
		doc.CliTokens[grant.Token] = CliToken{SessionID: sessionID, ExpiresAt: grant.ExpiresAt}
		return nil
	})
	if err != nil {
		return CliTokenGrant{}, errors.Wrap(err, "CreateCliToken repo.Update")
	}
	return grant, nil
}

// ResolveCliToken returns the session id behind token. An expired token is
// deleted on the spot and reported as ErrTokenExpired; the TTL is never
// extended.
func (m *Manager) ResolveCliToken(ctx context.Context, token string) (string, error) {
	doc, err := m.repo.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "ResolveCliToken repo.Load")
	}
	entry, ok := doc.CliTokens[token]
	if !ok {
		return "", bridgeerrors.ErrInvalidToken
	}
	if entry.ExpiresAt > m.nowFunc().UnixMilli() {
		return entry.SessionID, nil
	}

	err = m.repo.Update(ctx, func(doc *store.Document) error {
		if current, ok := doc.CliTokens[token]; ok && current.ExpiresAt <= m.nowFunc().UnixMilli() {
			delete(doc.CliTokens, token)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to delete expired cli token")
	}
	return "", bridgeerrors.ErrTokenExpired
}
