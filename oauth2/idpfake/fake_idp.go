package idpfake

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
)

var _ oauth2.Client = (*FakeIdP)(nil)

// ErrUnavailable simulates a network failure at the token endpoint.
var ErrUnavailable = errors.New("idp unavailable")

// FakeIdP is a scripted identity provider. With no script set every grant
// fails with ErrUnavailable.
type FakeIdP struct {
	RefreshFunc  func(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error)
	ExchangeFunc func(ctx context.Context, code, codeVerifier string) (*oauth2.TokenResponse, error)

	lock          sync.Mutex
	refreshCalls  []string
	exchangeCalls []string
}

func NewFakeIdP() *FakeIdP {
	return &FakeIdP{}
}

func (f *FakeIdP) AuthCodeURL(state, codeVerifier string) string {
	return fmt.Sprintf("https://idp.test/authorize?state=%s&code_challenge_method=S256", url.QueryEscape(state))
}

func (f *FakeIdP) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.TokenResponse, error) {
	f.lock.Lock()
	f.exchangeCalls = append(f.exchangeCalls, code)
	fn := f.ExchangeFunc
	f.lock.Unlock()

	if fn == nil {
		return nil, ErrUnavailable
	}
	return fn(ctx, code, codeVerifier)
}

func (f *FakeIdP) Refresh(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	f.lock.Lock()
	f.refreshCalls = append(f.refreshCalls, refreshToken)
	fn := f.RefreshFunc
	f.lock.Unlock()

	if fn == nil {
		return nil, ErrUnavailable
	}
	return fn(ctx, refreshToken)
}

func (f *FakeIdP) RefreshCalls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.refreshCalls...)
}

func (f *FakeIdP) ExchangeCalls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.exchangeCalls...)
}
