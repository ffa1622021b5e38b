package catalogfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/fetch"
)

// Client is the public handle on the access layer. It is safe for
// concurrent use.
type Client struct {
	facade *fetch.Facade
}

// New creates a client with the default configuration.
func New(opts ...ClientOption) (*Client, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a client from cfg.
func NewFromConfig(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	f, err := fetch.New(cfg, o.fetchOptions())
	if err != nil {
		return nil, err
	}
	return &Client{facade: f}, nil
}

// NewFromFile creates a client from a JSON config file, with environment
// overrides applied.
func NewFromFile(path string, opts ...ClientOption) (*Client, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before
// creating a client.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration with short intervals for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}

// FetchRaw returns the upstream payload for endpoint, served from cache when
// a fresh entry exists.
func (c *Client) FetchRaw(ctx context.Context, endpoint string, params Params, priority Priority) (json.RawMessage, error) {
	return c.facade.Fetch(ctx, endpoint, params, priority)
}

// Fetch retrieves endpoint and decodes the payload into T.
func Fetch[T any](ctx context.Context, c *Client, endpoint string, params Params, priority Priority) (T, error) {
	var out T
	payload, err := c.facade.Fetch(ctx, endpoint, params, priority)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %w", ErrSerializationFailed, endpoint, err)
	}
	return out, nil
}

// Invalidate drops the cached entry for a request, in whichever tier owns it.
func (c *Client) Invalidate(ctx context.Context, endpoint string, params Params) error {
	return c.facade.Invalidate(ctx, endpoint, params)
}

// InvalidateSegment drops every cached entry of one endpoint family.
func (c *Client) InvalidateSegment(ctx context.Context, seg Segment) error {
	return c.facade.InvalidateSegment(ctx, seg)
}

// Clear empties both cache tiers.
func (c *Client) Clear(ctx context.Context) error {
	return c.facade.Clear(ctx)
}

func (c *Client) Health(ctx context.Context) *HealthMetrics {
	return c.facade.Health(ctx)
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.facade.IsHealthy(ctx)
}

// Metrics returns the in-process counters.
func (c *Client) Metrics() MetricsSnapshot {
	return c.facade.Snapshot()
}

// MetricsHandler serves Prometheus metrics, or nil when Prometheus is off.
func (c *Client) MetricsHandler() http.Handler {
	return c.facade.MetricsHandler()
}

// Close drains the queue and releases both tiers. Further calls fail with
// ErrClosed.
func (c *Client) Close() error {
	return c.facade.Close()
}
