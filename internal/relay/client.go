package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Client sends requests through a remote relay endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// NewClient returns a Client posting to endpoint.
func NewClient(endpoint string, hc *http.Client) *Client {
	return &Client{Endpoint: endpoint, HTTP: hc}
}

// Do implements Doer.
func (c *Client) Do(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("relay: encode envelope: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("relay: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(hreq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("relay: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay: %s: status %d: %s", c.Endpoint, resp.StatusCode, bytes.TrimSpace(b))
	}
	// relays that do not report the upstream status are trusted as-is
	if v := resp.Header.Get(StatusHeader); v != "" {
		if code, err := strconv.Atoi(v); err == nil && (code < 200 || code > 299) {
			return string(b), &StatusError{URL: req.URL, Status: code}
		}
	}
	return string(b), nil
}
