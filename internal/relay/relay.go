// Package relay forwards HTTP requests on behalf of callers that cannot make
// them directly. The client side posts a JSON envelope describing the
// request; the server side performs it and answers with the upstream body
// and permissive CORS headers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request is the JSON envelope accepted by a relay.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Doer performs a Request and returns the response body as text.
type Doer interface {
	Do(ctx context.Context, req Request) (string, error)
}

// StatusHeader carries the upstream status code on relayed responses.
const StatusHeader = "X-Relay-Status"

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 8 << 20

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay: %s returned status %d", e.URL, e.Status)
}

// IsStatus reports whether err is an upstream status error.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// upstream is the result of performing a Request.
type upstream struct {
	status int
	header http.Header
	body   string
}

func perform(ctx context.Context, client *http.Client, req Request) (upstream, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return upstream{}, fmt.Errorf("relay: build request: %w", err)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return upstream{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return upstream{}, fmt.Errorf("relay: read body: %w", err)
	}
	return upstream{status: resp.StatusCode, header: resp.Header, body: string(b)}, nil
}

// Direct performs requests itself without a relay.
type Direct struct {
	HTTP *http.Client
}

// Do implements Doer.
func (d Direct) Do(ctx context.Context, req Request) (string, error) {
	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	up, err := perform(ctx, client, req)
	if err != nil {
		return "", err
	}
	if up.status < 200 || up.status > 299 {
		return up.body, &StatusError{URL: req.URL, Status: up.status}
	}
	return up.body, nil
}
