package oauth2_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	server     *httptest.Server
	tokenForms []url.Values
	tokenReply func(w http.ResponseWriter)
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 fp.server.URL,
			"authorization_endpoint": fp.server.URL + "/authorize",
			"token_endpoint":         fp.server.URL + "/token",
			"jwks_uri":               fp.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fp.tokenForms = append(fp.tokenForms, r.PostForm)
		fp.tokenReply(w)
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func jsonReply(status int, body map[string]any) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func discover(t *testing.T, fp *fakeProvider) *oauth2.OIDCClient {
	t.Helper()
	client, err := oauth2.Discover(context.Background(), oauth2.DiscoverConfig{
		IssuerURL:   fp.server.URL,
		ClientID:    "client-1",
		RedirectURL: "http://localhost:8787/auth/callback",
	})
	require.NoError(t, err)
	return client
}

func TestNewAuthRequest(t *testing.T) {
	client := discover(t, newFakeProvider(t))

	req := oauth2.NewAuthRequest(client)
	require.NotEmpty(t, req.State)
	require.NotEmpty(t, req.CodeVerifier)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "/authorize", u.Path)
	require.Equal(t, req.State, q.Get("state"))
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, oauth2.CodeMethodTypeS256, q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEqual(t, req.CodeVerifier, q.Get("code_challenge"))
	require.Contains(t, q.Get("scope"), "offline_access")

	again := oauth2.NewAuthRequest(client)
	require.NotEqual(t, req.State, again.State)
}

func TestOIDCClient_Refresh(t *testing.T) {
	t.Run("returns token set", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.tokenReply = jsonReply(http.StatusOK, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
		client := discover(t, fp)

		tr, err := client.Refresh(context.Background(), "old-refresh")
		require.NoError(t, err)
		require.Equal(t, "new-access", tr.AccessToken)
		require.Equal(t, "new-refresh", utils.Value(tr.RefreshToken))
		require.InDelta(t, 3600, tr.ExpiresIn, 2)
		require.Nil(t, tr.IdToken)

		require.NotEmpty(t, fp.tokenForms)
		last := fp.tokenForms[len(fp.tokenForms)-1]
		require.Equal(t, "refresh_token", last.Get("grant_type"))
		require.Equal(t, "old-refresh", last.Get("refresh_token"))
	})

	t.Run("provider rejects grant", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.tokenReply = jsonReply(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		client := discover(t, fp)

		_, err := client.Refresh(context.Background(), "revoked")
		require.Error(t, err)
	})
}

func TestOIDCClient_ExchangeCode(t *testing.T) {
	fp := newFakeProvider(t)
	fp.tokenReply = jsonReply(http.StatusOK, map[string]any{
		"access_token": "access",
		"token_type":   "Bearer",
	})
	client := discover(t, fp)

	tr, err := client.ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	require.Equal(t, "access", tr.AccessToken)
	require.Zero(t, tr.ExpiresIn)

	last := fp.tokenForms[len(fp.tokenForms)-1]
	require.Equal(t, "authorization_code", last.Get("grant_type"))
	require.Equal(t, "code-1", last.Get("code"))
	require.Equal(t, "verifier-1", last.Get("code_verifier"))
}

func TestDiscover_UnknownIssuer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := oauth2.Discover(context.Background(), oauth2.DiscoverConfig{IssuerURL: server.URL, ClientID: "c"})
	require.Error(t, err)
}
