package metrics

import (
	"log/slog"
	"slices"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// LoggingPublisher writes metrics to slog at debug level. Useful when no
// StatsD agent is reachable, e.g. in local development.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.logger.Debug("gauge", "name", name, "value", value, "tags", p.mergeTags(tags))
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.logger.Debug("incr", "name", name, "tags", p.mergeTags(tags))
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.logger.Debug("count", "name", name, "value", value, "tags", p.mergeTags(tags))
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.logger.Debug("histogram", "name", name, "value", value, "tags", p.mergeTags(tags))
}

func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.logger.Debug("timing", "name", name, "duration_ms", duration.Milliseconds(), "tags", p.mergeTags(tags))
}

func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}
	p.logger.Info("health_metrics",
		"server_entries", m.ServerEntries,
		"server_usage_pct", m.ServerUsagePercentage,
		"server_hit_ratio", m.ServerHitRatio,
		"client_hit_ratio", m.ClientHitRatio,
		"queue_depth", m.QueueDepth,
		"rate_limit_retries", m.RateLimitRetries,
		"upstream_avg_latency_ms", m.UpstreamAvgLatencyMs,
		"redis_connected", m.RedisConnected,
		"circuit_open", m.CircuitOpen,
	)
}

func (p *LoggingPublisher) Close() error {
	return nil
}

func (p *LoggingPublisher) mergeTags(tags []string) []string {
	if len(tags) == 0 {
		return p.baseTags
	}
	if len(p.baseTags) == 0 {
		return tags
	}
	return append(slices.Clip(p.baseTags), tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
