package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPMedium talks to a remote object store with a minimal REST surface:
//
//	GET  {base}/list?prefix=P&limit=1  -> {"blobs":[{"url":"...","pathname":"..."}]}
//	GET  {blob url}                    -> raw bytes
//	PUT  {base}/{path}                 -> stores the body, replacing any value
//
// Public blob URLs are typically served through a CDN, so reads send
// no-cache headers and the caller appends a cache-busting query token.
type HTTPMedium struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPMedium creates a client for the object store at baseURL.
func NewHTTPMedium(baseURL, token string) *HTTPMedium {
	return &HTTPMedium{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type listResponse struct {
	Blobs []struct {
		URL      string `json:"url"`
		Pathname string `json:"pathname"`
	} `json:"blobs"`
}

func (c *HTTPMedium) Find(ctx context.Context, prefix string) (string, bool, error) {
	q := url.Values{}
	q.Set("prefix", prefix)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list?"+q.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("list blobs (status %d): %s", resp.StatusCode, string(body))
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("failed to decode list response: %w", err)
	}
	if len(result.Blobs) == 0 || result.Blobs[0].URL == "" {
		return "", false, nil
	}
	return result.Blobs[0].URL, true, nil
}

func (c *HTTPMedium) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %v: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch blob: %w", ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("fetch blob (status %d): %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch blob (status %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob body: %v: %w", err, ErrTransient)
	}
	return data, nil
}

func (c *HTTPMedium) Put(ctx context.Context, path string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+strings.TrimPrefix(path, "/"), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Allow-Overwrite", "1")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("put request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("put blob (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *HTTPMedium) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

var _ Medium = (*HTTPMedium)(nil)
