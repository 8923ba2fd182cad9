package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client fetches workspace definitions from the cluster control plane.
// GetWorkspace returns (nil, nil) when the workspace does not exist;
// callers translate that into a denial, not an error.
type Client interface {
	GetWorkspace(ctx context.Context, name string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
}

// HTTPClient talks to the cluster workspace API over REST
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// HTTPClientOption configures an HTTPClient
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithBearerToken sets a bearer token sent on every cluster API request
func WithBearerToken(token string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// NewHTTPClient creates a workspace client for the given cluster API base
// URL, e.g. "https://cluster.internal:6443".
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) do(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build cluster API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cluster API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode cluster API response: %w", err)
		}
		return resp.StatusCode, nil
	}

	// Drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// GetWorkspace fetches a single workspace by name. A 404 from the cluster
// API yields (nil, nil).
func (c *HTTPClient) GetWorkspace(ctx context.Context, name string) (*Workspace, error) {
	var ws Workspace
	status, err := c.do(ctx, "/apis/tenancy/v1/workspaces/"+url.PathEscape(name), &ws)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &ws, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("cluster API returned status %d for workspace %q", status, name)
	}
}

// ListWorkspaces fetches all workspace definitions
func (c *HTTPClient) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var list struct {
		Items []Workspace `json:"items"`
	}
	status, err := c.do(ctx, "/apis/tenancy/v1/workspaces", &list)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("cluster API returned status %d listing workspaces", status)
	}
	return list.Items, nil
}
