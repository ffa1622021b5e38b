// Package upstream performs the HTTP calls to the catalog API and turns
// their outcome into payloads or typed errors.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Client issues GET requests against the catalog API. It performs exactly
// one request per call; pacing and retries belong to the caller.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	apiKey    types.SecretString
	metrics   types.MetricsRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithMetrics(m types.MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client for cfg.BaseURL.
func NewClient(cfg config.UpstreamConfig, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		apiKey:    cfg.APIKey,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "upstream")
	return c
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches endpoint with query and returns the raw JSON body.
//
// Failures are reported as:
//   - *types.UpstreamError with Status 0 for transport failures,
//   - *types.UpstreamError with the response status for any non-2xx reply;
//     a 429 also matches types.ErrRateLimited and carries Retry-After,
//   - types.ErrMalformedResponse when a 2xx body is not valid JSON,
//   - the context error when ctx ends first.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, types.NewUpstreamError(endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if !c.apiKey.IsEmpty() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.record(endpoint, 0, time.Since(start))
		c.logger.Debug("Upstream request failed", "endpoint", endpoint, "error", err)
		return nil, types.NewUpstreamError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	c.record(endpoint, resp.StatusCode, latency)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewUpstreamError(endpoint, 0, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("Upstream response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"latency", latency,
		"bytes", len(body),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ue := types.NewUpstreamError(endpoint, resp.StatusCode, nil)
		ue.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		return nil, ue
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, types.NewUpstreamError(endpoint, resp.StatusCode, nil)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", types.ErrMalformedResponse, endpoint)
	}
	return json.RawMessage(body), nil
}

func (c *Client) record(endpoint string, status int, latency time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordUpstream(endpoint, status, latency)
	}
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms. Anything
// unparsable or in the past yields zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
