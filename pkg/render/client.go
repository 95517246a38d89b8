// Package render provides a client for the LaTeX compilation service that
// turns tailored document sources into PDF artifacts.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the render service operations.
type Client interface {
	// Compile submits LaTeX source and returns the compiled PDF bytes.
	Compile(ctx context.Context, req CompileRequest) ([]byte, error)
}

// CompileRequest is the payload for one compilation.
type CompileRequest struct {
	Source string `json:"source"`
	// Passes controls how many compiler passes run server-side. Two passes
	// are needed for documents with cross-references; defaults to 2.
	Passes int `json:"passes,omitempty"`
}

// Option configures the render client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new render service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "http://localhost:9050",
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Compile(ctx context.Context, req CompileRequest) ([]byte, error) {
	if req.Passes == 0 {
		req.Passes = 2
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "render: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compile", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "render: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "render: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "render: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("render: compile failed with status %d: %s", resp.StatusCode, truncate(body, 500))
	}

	if len(body) == 0 {
		return nil, eris.New("render: empty PDF returned")
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
