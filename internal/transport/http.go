package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
)

// HTTPTransport implements Transport over net/http
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
}

// HTTPOption configures an HTTPTransport
type HTTPOption func(*HTTPTransport)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.httpClient.Timeout = d
	}
}

// WithBearerToken authenticates every request with a static bearer token
func WithBearerToken(token string) HTTPOption {
	return func(t *HTTPTransport) {
		if token == "" {
			return
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		timeout := t.httpClient.Timeout
		t.httpClient = oauth2.NewClient(context.Background(), ts)
		t.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying client, e.g. one carrying a custom
// authenticating RoundTripper
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent: "findings-exporter/1.0",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call sends the request and decodes the JSON object in the response.
// Network failures, non-2xx statuses and undecodable bodies are all
// reported as transport errors.
func (t *HTTPTransport) Call(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewTransportError(method, url, 0, fmt.Errorf("failed to marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewTransportError(method, url, resp.StatusCode, errors.New(excerpt(data)))
	}

	out, err := decodeObject(data)
	if err != nil {
		return nil, apperrors.NewTransportError(method, url, resp.StatusCode, err)
	}
	return out, nil
}
