package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	resourceManagerPrefix = "/apis/resourcemanager.miloapis.com/v1alpha1"
	iamUsersPrefix        = "/apis/iam.miloapis.com/v1alpha1/users"
	apiGroupPrefix        = "/apis/"
)

// relativeBase resolves request paths the way a browser resolves a relative URL.
var relativeBase = &url.URL{Scheme: "http", Host: "datum.local", Path: "/"}

// RequestOptions is one datum.request call after it leaves the runtime.
// Body is already serialized; nil means no body.
type RequestOptions struct {
	Method         string
	Path           string
	Query          map[string]string
	Body           *string
	ContentType    string
	RawBody        bool
	OrganizationID string
	ProjectID      string
}

// Response is a successful API response. When JSON is true Body holds a JSON
// document, otherwise plain text.
type Response struct {
	Status int
	JSON   bool
	Body   []byte
}

// APIClient performs authenticated calls against the Datum API.
type APIClient struct {
	apiBase      string
	httpClient   *http.Client
	logRequests  bool
	logResponses bool
	observe      func(method string, status int)
	tracer       trace.Tracer
}

type APIClientOption func(*APIClient)

func WithHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		c.httpClient = client
	}
}

// WithRequestLogging logs outgoing requests and/or incoming responses.
func WithRequestLogging(requests, responses bool) APIClientOption {
	return func(c *APIClient) {
		c.logRequests = requests
		c.logResponses = responses
	}
}

// WithRequestObserver is called after every completed round trip.
func WithRequestObserver(observe func(method string, status int)) APIClientOption {
	return func(c *APIClient) {
		c.observe = observe
	}
}

// WithAPITracer records a span per API round trip.
func WithAPITracer(tracer trace.Tracer) APIClientOption {
	return func(c *APIClient) {
		c.tracer = tracer
	}
}

func NewAPIClient(apiBase string, options ...APIClientOption) *APIClient {
	c := &APIClient{
		apiBase:    apiBase,
		httpClient: &http.Client{},
		observe:    func(string, int) {},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ResolveBase picks the host a request is sent to: organization control
// plane, then project control plane, then the user's control plane for API
// group paths when a user is known, else the API base itself.
func ResolveBase(apiBase string, opts RequestOptions, userID string) (string, error) {
	if opts.OrganizationID != "" && opts.ProjectID != "" {
		return "", &bridgeerrors.UsageError{Message: "Provide only one of organizationId or projectId"}
	}

	base, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("invalid API base %q: %w", apiBase, err)
	}

	switch {
	case opts.OrganizationID != "":
		return fmt.Sprintf("https://%s%s/organizations/%s/control-plane", base.Host, resourceManagerPrefix, opts.OrganizationID), nil
	case opts.ProjectID != "":
		return fmt.Sprintf("https://%s%s/projects/%s/control-plane", base.Host, resourceManagerPrefix, opts.ProjectID), nil
	case userID != "" && strings.HasPrefix(opts.Path, apiGroupPrefix):
		return fmt.Sprintf("https://%s%s/%s/control-plane", base.Host, iamUsersPrefix, userID), nil
	default:
		return apiBase, nil
	}
}

// BuildURL appends path to the base path. The query and fragment of path
// replace any on the base; a host in path is ignored.
func BuildURL(base, path string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	rel, err := url.Parse(path)
	if err != nil {
		return nil, &bridgeerrors.UsageError{Message: fmt.Sprintf("invalid path %q: %v", path, err)}
	}
	rel = relativeBase.ResolveReference(rel)

	u.Path = strings.TrimSuffix(u.Path, "/") + rel.Path
	u.RawPath = ""
	u.RawQuery = rel.RawQuery
	u.Fragment = rel.Fragment
	return u, nil
}

// Do sends the request with the caller's bearer token. Non-2xx statuses
// return an *errors.APIError.
func (c *APIClient) Do(ctx context.Context, accessToken, userID string, opts RequestOptions) (resp *Response, err error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "datum.request",
			trace.WithAttributes(attribute.String("http.method", strings.ToUpper(opts.Method)), attribute.String("datum.path", opts.Path)))
		defer func() {
			if resp != nil {
				span.SetAttributes(attribute.Int("http.status_code", resp.Status))
			}
			endSpan(span, err)
		}()
	}

	base, err := ResolveBase(c.apiBase, opts, userID)
	if err != nil {
		return nil, err
	}
	u, err := BuildURL(base, opts.Path)
	if err != nil {
		return nil, err
	}
	if len(opts.Query) > 0 {
		q := u.Query()
		for k, v := range opts.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		body = strings.NewReader(*opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	switch {
	case opts.ContentType != "":
		req.Header.Set("Content-Type", opts.ContentType)
	case opts.Body != nil && !opts.RawBody:
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logRequests {
		event := log.Info().Str("method", method).Str("url", u.Host+u.RequestURI()).Str("contentType", req.Header.Get("Content-Type"))
		if opts.Body != nil {
			event = event.Str("body", *opts.Body)
		}
		event.Msg("datum api request")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datum api request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read datum api response: %w", err)
	}
	c.observe(method, httpResp.StatusCode)

	isJSON := strings.Contains(httpResp.Header.Get("Content-Type"), "application/json")
	if c.logResponses {
		log.Info().Str("method", method).Str("url", u.Host+u.RequestURI()).Int("status", httpResp.StatusCode).
			Str("contentType", httpResp.Header.Get("Content-Type")).Bytes("body", data).Msg("datum api response")
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &bridgeerrors.APIError{Status: httpResp.StatusCode, Message: apiErrorMessage(data, isJSON)}
	}
	return &Response{Status: httpResp.StatusCode, JSON: isJSON, Body: data}, nil
}

// apiErrorMessage prefers message, error or reason from a JSON body and
// falls back to the body itself.
func apiErrorMessage(data []byte, isJSON bool) string {
	if !isJSON {
		return string(data)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err == nil {
		for _, key := range []string{"message", "error", "reason"} {
			if msg := truthyText(fields[key]); msg != "" {
				return msg
			}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err == nil {
		return compact.String()
	}
	return string(data)
}

func truthyText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
