// Package supabase provides a client for Supabase Storage object uploads.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the storage operations used by the pipeline.
type Client interface {
	// Upload stores an object in the given bucket and returns its public URL.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (*UploadResult, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	Path      string `json:"path"`
	Size      int    `json:"size"`
	PublicURL string `json:"public_url"`
}

// Option configures the storage client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	projectURL string
	apiKey     string
	http       *http.Client
}

// NewClient creates a new Supabase Storage client for the given project URL
// (e.g. https://xyz.supabase.co) and service key.
func NewClient(projectURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		projectURL: projectURL,
		apiKey:     apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, eris.New("supabase: refusing to upload empty object")
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s",
		c.projectURL, url.PathEscape(bucket), url.PathEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "supabase: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	// Overwrite on name collision; paths carry a unique suffix anyway.
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: upload failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: read response body")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, eris.Errorf("supabase: upload status %d: %s", resp.StatusCode, string(body))
	}

	return &UploadResult{
		Path:      path,
		Size:      len(data),
		PublicURL: fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.projectURL, bucket, path),
	}, nil
}
