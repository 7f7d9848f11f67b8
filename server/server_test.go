package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/datum-mcp-bridge/auth"
	"github.com/jrsteele09/datum-mcp-bridge/internal/config"
	"github.com/jrsteele09/datum-mcp-bridge/internal/metrics"
	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2/idpfake"
	"github.com/jrsteele09/datum-mcp-bridge/sandbox"
	"github.com/jrsteele09/datum-mcp-bridge/server"
	"github.com/jrsteele09/datum-mcp-bridge/sessions"
	storerepofake "github.com/jrsteele09/datum-mcp-bridge/store/repofake"
	"github.com/jrsteele09/datum-mcp-bridge/token/refresh"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

const (
	sessionCookie  = "datum_mcp_session"
	stateCookie    = "datum_mcp_state"
	verifierCookie = "datum_mcp_verifier"
)

type testFixture struct {
	sessions *sessions.Manager
	idp      *idpfake.FakeIdP
	api      *httptest.Server
	apiAuth  string
	dataDir  string
	server   *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{dataDir: t.TempDir()}
	t.Setenv("ENV", "test")
	t.Setenv("DATUM_DATA_DIR", f.dataDir)
	t.Setenv("BASE_URL", "http://bridge.test")

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[{"name":"p1"}]}`)
	}))
	t.Cleanup(f.api.Close)

	f.idp = idpfake.NewFakeIdP()
	f.sessions = sessions.NewManager(storerepofake.NewFakeStore())
	policy := refresh.NewPolicy(f.sessions, f.idp)
	service, err := auth.NewService(f.sessions, policy, f.idp,
		auth.WithSessionIDGenerator(func() string { return "session-new" }),
	)
	require.NoError(t, err)

	srv, err := server.New(config.New(), server.Dependencies{
		Auth:      service,
		Executor:  sandbox.NewExecutor(),
		APIClient: sandbox.NewAPIClient(f.api.URL, sandbox.WithHTTPClient(f.api.Client())),
		Metrics:   metrics.NewMetricsCollector(),
	})
	require.NoError(t, err)

	f.server = httptest.NewServer(srv)
	t.Cleanup(f.server.Close)
	return f
}

func (f *testFixture) seedSession(t *testing.T, sessionID string, s sessions.Session) {
	t.Helper()
	require.NoError(t, f.sessions.Set(context.Background(), sessionID, s))
}

func (f *testFixture) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestMCP_Unauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "expired", sessions.Session{
		AccessToken: utils.Ptr("old"),
		ExpiresAt:   utils.Ptr(int64(1)),
	})

	tests := []struct {
		name   string
		header string
		cookie *http.Cookie
		want   string
	}{
		{name: "no credentials", want: "Not authenticated. Open http://bridge.test/auth/login"},
		{name: "unknown bearer token", header: "Bearer nope", want: "Not authenticated. Open http://bridge.test/auth/login"},
		{name: "unknown session cookie", cookie: &http.Cookie{Name: sessionCookie, Value: "ghost"}, want: "Session not found. Open http://bridge.test/auth/login"},
		{name: "expired session", cookie: &http.Cookie{Name: sessionCookie, Value: "expired"}, want: "Session expired. Open http://bridge.test/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, f.server.URL+server.RouteMCP, strings.NewReader(`{}`))
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.Equal(t, tt.want, errorBody(t, resp))
		})
	}
}

func TestLoginFlow(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.ExchangeFunc = func(ctx context.Context, code, codeVerifier string) (*oauth2.TokenResponse, error) {
		return &oauth2.TokenResponse{AccessToken: "access-1", RefreshToken: utils.Ptr("refresh-1"), ExpiresIn: 3600}, nil
	}

	resp := f.get(t, server.RouteAuthLogin)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	state := responseCookie(resp, stateCookie)
	verifier := responseCookie(resp, verifierCookie)
	require.NotNil(t, state)
	require.NotNil(t, verifier)
	require.True(t, state.HttpOnly)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, state.Value, location.Query().Get("state"))

	t.Run("state mismatch", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthCallback+"?code=c1&state=forged", state, verifier)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Nil(t, responseCookie(resp, sessionCookie))
	})

	t.Run("missing state cookie", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthCallback+"?code=c1&state="+state.Value)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("success", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthCallback+"?code=c1&state="+url.QueryEscape(state.Value), state, verifier)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		session := responseCookie(resp, sessionCookie)
		require.NotNil(t, session)
		require.Equal(t, "session-new", session.Value)
		require.Equal(t, []string{"c1"}, f.idp.ExchangeCalls())

		stored, err := f.sessions.Get(context.Background(), "session-new")
		require.NoError(t, err)
		require.Equal(t, "access-1", utils.Value(stored.AccessToken))
	})

	t.Run("logout", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthLogout, &http.Cookie{Name: sessionCookie, Value: "session-new"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cleared := responseCookie(resp, sessionCookie)
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)

		_, err := f.sessions.Get(context.Background(), "session-new")
		require.Error(t, err)
	})
}

func TestCliToken(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "s1", sessions.Session{AccessToken: utils.Ptr("access-1")})

	t.Run("requires cookie session", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthToken)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("mints token", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthToken, &http.Cookie{Name: sessionCookie, Value: "s1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body server.CliTokenResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotEmpty(t, body.Token)
		require.Equal(t, "Bearer "+body.Token, body.Authorization)
		require.Positive(t, body.ExpiresAt)

		sessionID, err := f.sessions.ResolveCliToken(context.Background(), body.Token)
		require.NoError(t, err)
		require.Equal(t, "s1", sessionID)
	})
}

func newMCPClient(t *testing.T, f *testFixture, bearer string) *mcpclient.Client {
	t.Helper()
	ctx := context.Background()

	c, err := mcpclient.NewStreamableHttpClient(f.server.URL+server.RouteMCP,
		transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + bearer}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "bridge-test", Version: "0.0.1"}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *mcpclient.Client, name, code string) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = map[string]any{"code": code}

	result, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestMCP_Tools(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "s1", sessions.Session{AccessToken: utils.Ptr("access-1")})
	grant, err := f.sessions.CreateCliToken(context.Background(), "s1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "products.json"), []byte(`["compute","iam"]`), 0o600))
	c := newMCPClient(t, f, grant.Token)

	t.Run("lists both tools", func(t *testing.T) {
		tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
		require.NoError(t, err)
		require.Len(t, tools.Tools, 2)
		for _, tool := range tools.Tools {
			if tool.Name == server.ToolSearch {
				require.Contains(t, tool.Description, "Products: compute, iam... (2 total)")
			}
		}
	})

	t.Run("search without cached spec", func(t *testing.T) {
		text, isError := callTool(t, c, server.ToolSearch, `async () => Object.keys(spec.paths)`)
		require.True(t, isError)
		require.Contains(t, text, "spec.json not found")
	})

	t.Run("search", func(t *testing.T) {
		spec := `{"paths":{"/apis/compute.miloapis.com/v1alpha1/projects":{"get":{"summary":"List projects","tags":["compute"]}}}}`
		require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "spec.json"), []byte(spec), 0o600))

		text, isError := callTool(t, c, server.ToolSearch, `async () => Object.keys(spec.paths).length`)
		require.False(t, isError, text)
		require.Equal(t, "1", text)
	})

	t.Run("execute uses the session access token", func(t *testing.T) {
		text, isError := callTool(t, c, server.ToolExecute, `async () => (await datum.request({ method: "GET", path: "/apis/compute.miloapis.com/v1alpha1/projects" })).result.items[0].name`)
		require.False(t, isError, text)
		require.Equal(t, "p1", text)
		require.Equal(t, "Bearer access-1", f.apiAuth)
	})

	t.Run("execute error", func(t *testing.T) {
		text, isError := callTool(t, c, server.ToolExecute, `async () => { throw new Error("boom") }`)
		require.True(t, isError)
		require.Equal(t, "Error: boom", text)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	_ = f.get(t, server.RouteAuthLogout)

	resp := f.get(t, server.RouteMetrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "datum_mcp_http_requests_total")
}
