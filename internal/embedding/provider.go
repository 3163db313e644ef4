// Package embedding defines the external embedding collaborator. Vectors are
// used only for near-duplicate similarity scoring; a nil provider disables
// similarity flagging entirely.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Provider supplies a vector embedding for instruction text.
type Provider interface {
	// Embed returns the embedding for text. Implementations should be fast;
	// the engine treats failures as "no embedding" and continues.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPClient calls an embedding service over HTTP (POST {base}/embed).
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPClient returns a client for the embedding service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Dim     int         `json:"dim"`
}

// Embed implements Provider.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := json.Marshal(embedRequest{Texts: []string{text}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(out.Vectors) != 1 || len(out.Vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding: expected 1 vector, got %d", len(out.Vectors))
	}
	return out.Vectors[0], nil
}
