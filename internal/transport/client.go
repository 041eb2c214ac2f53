// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/config"
)

const (
	// ChatPath is the non-streaming endpoint.
	ChatPath = "/api/chat"

	// ChatStreamPath is the server-sent event endpoint.
	ChatStreamPath = "/api/chat_stream"

	// HealthPath is the backend health endpoint.
	HealthPath = "/health"

	// MaxResponseSize caps a non-streaming reply body.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody is how much of a failed response is kept for the error.
	maxErrorBody = 4096
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidURL is returned by New for an unusable base URL.
	ErrInvalidURL = errors.New("invalid server URL")

	// ErrNetwork wraps failures to reach the server or read its reply.
	ErrNetwork = errors.New("network error")

	// ErrBadStatus matches any *StatusError.
	ErrBadStatus = errors.New("unexpected HTTP status")

	// ErrDecode wraps a reply that is not the expected JSON.
	ErrDecode = errors.New("invalid response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("server error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("server error (HTTP %d): %s", e.Status, body)
}

// Is lets errors.Is(err, ErrBadStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. Each call issues exactly one request
// and never retries; keeping one turn in flight is the caller's job.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    http.Header
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout bounds each request, including reading a streamed body.
// Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		hc := *cl.httpClient
		hc.Timeout = d
		cl.httpClient = &hc
	}
}

// WithRateLimit paces requests to at most r per second with the given
// burst. Waiting honours the request context.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(cl *Client) {
		if r <= 0 {
			cl.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(r, burst)
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		cl.headers.Add(key, value)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		headers:    make(http.Header),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client from the [server] config section.
func NewFromConfig(cfg config.ServerConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		WithLogger(logger),
	}
	return New(cfg.URL, append(base, opts...)...)
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// post sends body as JSON to path and returns the response once the status
// is known to be 2xx. The caller owns the body.
func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if accept == "text/event-stream" {
		req.Header.Set("Cache-Control", "no-cache")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	c.logger.Debug("response headers received",
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// Ping issues a GET to the base URL and returns the HTTP status. Any
// response at all means the server is reachable; only failing to get one
// is an error.
func (c *Client) Ping(ctx context.Context) (int, error) {
	resp, err := c.get(ctx, c.baseURL.String())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, nil
}

// Health is the reply of the health endpoint.
type Health struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	MCPURL     string `json:"mcp_url"`
	Streaming  *bool  `json:"streaming"`

	// Fallback is set when the server has no health route and the base
	// URL was tried instead.
	Fallback bool `json:"-"`
}

// Health queries the health endpoint. A server without one (HTTP 404) is
// checked at the base URL instead, as Ping does. A body that is not the
// expected JSON leaves the decoded fields empty.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.get(ctx, c.endpoint(HealthPath))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		status, err := c.Ping(ctx)
		if err != nil {
			return nil, err
		}
		return &Health{StatusCode: status, Fallback: true}, nil
	}

	h := &Health{}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && resp.StatusCode/100 == 2 {
		if err := json.Unmarshal(body, h); err != nil {
			c.logger.Debug("health reply is not JSON", "error", err)
			h = &Health{}
		}
	}
	h.StatusCode = resp.StatusCode
	return h, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}
