package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Resource is one API group/version listed by the OpenAPI index.
type Resource struct {
	Path              string `json:"path"`
	ServerRelativeURL string `json:"serverRelativeURL"`
}

// Fetcher downloads OpenAPI documents from the API server.
type Fetcher struct {
	apiBase    string
	httpClient *http.Client
}

func NewFetcher(apiBase string, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{apiBase: apiBase, httpClient: httpClient}
}

// FetchIndex returns the index document listing every published resource.
func (f *Fetcher) FetchIndex(ctx context.Context, indexPath, token string) (map[string]any, error) {
	doc, err := f.getJSON(ctx, indexPath, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI index: %w", err)
	}
	return doc, nil
}

// FetchSpec returns the raw OpenAPI document for one resource.
func (f *Fetcher) FetchSpec(ctx context.Context, serverRelativeURL, token string) (map[string]any, error) {
	doc, err := f.getJSON(ctx, serverRelativeURL, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI spec: %w", err)
	}
	return doc, nil
}

func (f *Fetcher) getJSON(ctx context.Context, ref, token string) (map[string]any, error) {
	base, err := url.Parse(f.apiBase)
	if err != nil {
		return nil, fmt.Errorf("invalid API base %q: %w", f.apiBase, err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", ref, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(rel).String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s", resp.Status)
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc, nil
}

// ExtractResources lists the apis/ resources of an index document, sorted by path.
func ExtractResources(index map[string]any) []Resource {
	paths, _ := index["paths"].(map[string]any)

	resources := []Resource{}
	for path, value := range paths {
		entry, ok := value.(map[string]any)
		if !ok {
			continue
		}
		serverRelativeURL, ok := entry["serverRelativeURL"].(string)
		if !ok {
			continue
		}
		normalized := strings.TrimPrefix(path, "/")
		if strings.HasPrefix(normalized, "apis/") {
			resources = append(resources, Resource{Path: normalized, ServerRelativeURL: serverRelativeURL})
		}
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Path < resources[j].Path
	})
	return resources
}

// FilterResources keeps only allowed resources. An empty allow-list keeps all.
func FilterResources(resources []Resource, allowed []string) []Resource {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		if a = strings.TrimSpace(a); a != "" {
			allow[a] = struct{}{}
		}
	}
	if len(allow) == 0 {
		return resources
	}

	filtered := []Resource{}
	for _, r := range resources {
		if _, ok := allow[r.Path]; ok {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
