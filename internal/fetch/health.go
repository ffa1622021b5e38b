package fetch

import (
	"context"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// Health reports the state of both tiers, Redis and the upstream queue. A
// tier switched off in the configuration does not count against the status;
// an open circuit or a lost Redis connection degrades it.
func (f *Facade) Health(ctx context.Context) *types.HealthMetrics {
	h := &types.HealthMetrics{
		Timestamp:   time.Now(),
		ServerCache: f.server.Health(),
		ClientCache: f.client.Health(),
		Redis:       f.server.RedisHealth(),
		Queue:       f.queueHealth(),
	}

	switch {
	case f.closed.Load():
		h.Status = types.HealthStatusUnhealthy
	case f.policy.IsCircuitOpen(),
		f.cfg.ServerCache.Enabled && h.ServerCache.Status != types.HealthStatusHealthy,
		f.cfg.ClientCache.Enabled && h.ClientCache.Status != types.HealthStatusHealthy,
		h.Redis.Enabled && !h.Redis.Connected:
		h.Status = types.HealthStatusDegraded
	default:
		h.Status = types.HealthStatusHealthy
	}
	return h
}

// IsHealthy reports whether Health would return a healthy status.
func (f *Facade) IsHealthy(ctx context.Context) bool {
	return f.Health(ctx).Status == types.HealthStatusHealthy
}

func (f *Facade) queueHealth() types.QueueHealthMetrics {
	qs := f.queue.Stats()
	return types.QueueHealthMetrics{
		LastRequestAt:       f.gate.LastRequestAt(),
		Pending:             qs.Pending,
		Capacity:            qs.Capacity,
		Executed:            qs.Executed,
		Rejected:            qs.Rejected,
		RateLimitRetries:    f.policy.Retry().Stats().Retries,
		CircuitBreakerState: f.policy.CircuitState().String(),
	}
}

// publisherHealth is sampled by the background publisher.
func (f *Facade) publisherHealth() *types.PublisherHealthMetrics {
	snap := f.tracker.Snapshot()
	server := f.server.Health()
	return &types.PublisherHealthMetrics{
		ServerEntries:         server.EntryCount,
		ServerUsagePercentage: server.UsagePercentage,
		ServerHitRatio:        snap.ServerHitRatio(),
		ClientHitRatio:        snap.ClientHitRatio(),
		QueueDepth:            f.queue.Len(),
		RateLimitRetries:      f.policy.Retry().Stats().Retries,
		UpstreamAvgLatencyMs:  snap.AvgLatencyMs,
		RedisConnected:        f.server.RedisHealth().Connected,
		CircuitOpen:           f.policy.IsCircuitOpen(),
	}
}
