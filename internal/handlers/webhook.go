// Package handlers provides Lambda handlers for the game recommendation engine.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const webhookTimeout = 30 * time.Second

// WebhookClient posts JSON payloads to a fixed URL.
type WebhookClient struct {
	url    string
	client *http.Client
}

// NewWebhookClient creates a client for url. An empty url yields a client
// whose Post is a no-op.
func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Configured reports whether the client has a target URL.
func (w *WebhookClient) Configured() bool {
	return w != nil && w.url != ""
}

// Post sends payload and returns the decoded JSON response, or nil when the
// response is not JSON.
func (w *WebhookClient) Post(ctx context.Context, payload any) (any, error) {
	if !w.Configured() {
		return nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil
	}
	return result, nil
}
