package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client calls a relay endpoint over HTTP. Front ends that do not run the
// relay in-process (the CLI, other services) use it to request enhancements.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a client for the relay at relayURL. A bare base URL
// ("http://host:8080") gets Path appended.
func NewClient(relayURL string, httpClient *http.Client) *Client {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL != "" && !strings.HasSuffix(relayURL, Path) {
		relayURL = strings.TrimRight(relayURL, "/") + Path
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: relayURL, client: httpClient}
}

// URL returns the resolved relay endpoint.
func (c *Client) URL() string {
	return c.url
}

// Enhance implements board.Enhancer.
func (c *Client) Enhance(ctx context.Context, taskID int64, title, email string) error {
	if c.url == "" {
		return &ConfigurationError{Setting: "relay URL"}
	}
	body, err := json.Marshal(Request{TaskID: taskID, Title: title, UserEmail: email})
	if err != nil {
		return &EnhancementError{Op: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &EnhancementError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &EnhancementError{Op: "call relay", Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}

	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	upErr := &UpstreamError{StatusCode: resp.StatusCode}
	if msg := strings.TrimSpace(payload.Error); msg != "" {
		return fmt.Errorf("relay: %s: %w", msg, upErr)
	}
	return fmt.Errorf("relay: %w", upErr)
}
