// Package datadog publishes access layer metrics to a DataDog agent over
// StatsD.
package datadog

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// Publisher implements types.Publisher on top of the StatsD client.
type Publisher struct {
	client statsd.ClientInterface
	logger *slog.Logger
}

// NewPublisher returns a StatsD-backed publisher, or a NoOpPublisher when
// DataDog is disabled. Configured tags are attached by the client to every
// metric.
func NewPublisher(cfg config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return NoOpPublisher{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(cfg.AgentHost, strconv.Itoa(cfg.Port))
	opts := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix+"."))
	}

	client, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("DataDog publisher initialized",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return newPublisher(client, logger), nil
}

func newPublisher(client statsd.ClientInterface, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With("component", "datadog"),
	}
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, tags, 1); err != nil {
		p.logger.Debug("Failed to send incr metric", "name", name, "error", err)
	}
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	if err := p.client.Count(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send count metric", "name", name, "error", err)
	}
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	if err := p.client.Histogram(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send histogram metric", "name", name, "error", err)
	}
}

func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, tags, 1); err != nil {
		p.logger.Debug("Failed to send timing metric", "name", name, "error", err)
	}
}

// Event sends a DataDog event. alertType is one of info, success, warning
// or error.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      tags,
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send event", "title", title, "error", err)
	}
}

// PublishHealthMetrics sends one health sample as a batch of gauges.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.Gauge("server_cache.entries", float64(m.ServerEntries))
	p.Gauge("server_cache.usage_percentage", clamp(m.ServerUsagePercentage, 0, 100))
	p.Gauge("server_cache.hit_ratio", clamp(m.ServerHitRatio, 0, 1))
	p.Gauge("client_cache.hit_ratio", clamp(m.ClientHitRatio, 0, 1))
	p.Gauge("queue.depth", float64(m.QueueDepth))
	p.Gauge("upstream.rate_limit_retries", float64(m.RateLimitRetries))
	p.Gauge("upstream.average_latency_ms", max(0, m.UpstreamAvgLatencyMs))
	p.Gauge("redis.connected", boolGauge(m.RedisConnected))
	p.Gauge("upstream.circuit_open", boolGauge(m.CircuitOpen))
}

func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func clamp(val, minVal, maxVal float64) float64 {
	return min(max(val, minVal), maxVal)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ types.Publisher = (*Publisher)(nil)
