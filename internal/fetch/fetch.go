// Package fetch is the single entry point for catalog data. It resolves a
// request to a cache key, serves fresh entries from the owning tier and
// funnels misses through the serialized upstream queue.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/catalogfetch/internal/cache"
	"github.com/LavishGent/catalogfetch/internal/cachekey"
	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/metrics"
	"github.com/LavishGent/catalogfetch/internal/metrics/datadog"
	"github.com/LavishGent/catalogfetch/internal/metrics/prometheus"
	"github.com/LavishGent/catalogfetch/internal/queue"
	"github.com/LavishGent/catalogfetch/internal/ratelimit"
	"github.com/LavishGent/catalogfetch/internal/resilience"
	"github.com/LavishGent/catalogfetch/internal/types"
	"github.com/LavishGent/catalogfetch/internal/upstream"
)

// Getter performs one upstream GET. upstream.Client implements it.
type Getter interface {
	Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error)
}

// Options supplies optional collaborators. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Metrics receives every event in addition to the built-in tracker.
	Metrics types.MetricsRecorder
	// Publisher overrides the publisher chosen from the metrics config.
	Publisher  types.Publisher
	HTTPClient *http.Client
	// Upstream replaces the HTTP client entirely, mainly for tests.
	Upstream Getter
	Clock    types.Clock
}

// Facade composes the gate, queue, upstream client and both cache tiers.
type Facade struct {
	cfg      *config.Config
	gate     *ratelimit.Gate
	policy   *resilience.Policy
	queue    *queue.Queue
	upstream Getter
	server   *cache.Cache
	client   *cache.Cache

	tracker    *metrics.Tracker
	prom       *prometheus.Recorder
	publisher  types.Publisher
	background *metrics.BackgroundPublisher
	metrics    types.MetricsRecorder
	logger     *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and wires every component.
func New(cfg *config.Config, opts Options) (*Facade, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Facade{
		cfg:     cfg,
		tracker: metrics.NewTracker(),
		logger:  logger.With("component", "fetch"),
	}

	recorders := []types.MetricsRecorder{f.tracker, opts.Metrics}
	if cfg.Metrics.Prometheus.Enabled {
		f.prom = prometheus.NewRecorder(cfg.Metrics.Prometheus)
		recorders = append(recorders, f.prom)
	}

	publisher, err := newPublisher(cfg.Metrics, opts.Publisher, logger)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		f.publisher = publisher
		recorders = append(recorders, metrics.NewPublishingRecorder(publisher))
	}
	f.metrics = metrics.NewMultiRecorder(recorders...)

	f.gate = ratelimit.NewGate(cfg.RateGate.Interval)
	f.policy = resilience.NewPolicy(cfg, f.gate)
	f.policy.SetOnRetry(f.onRetry)
	f.policy.SetOnCircuitStateChange(func(from, to resilience.State) {
		f.logger.Warn("Upstream circuit breaker state changed", "from", from.String(), "to", to.String())
		f.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
	})

	f.upstream = opts.Upstream
	if f.upstream == nil {
		clientOpts := []upstream.Option{upstream.WithMetrics(f.metrics), upstream.WithLogger(logger)}
		if opts.HTTPClient != nil {
			clientOpts = append(clientOpts, upstream.WithHTTPClient(opts.HTTPClient))
		}
		f.upstream = upstream.NewClient(cfg.Upstream, clientOpts...)
	}

	deps := cache.Deps{Logger: logger, Metrics: f.metrics, Clock: opts.Clock}
	if f.server, err = cache.NewServerCache(cfg, cachekey.NewPolicy(cfg.ServerCache.TTLs), deps); err != nil {
		f.closePublisher()
		return nil, fmt.Errorf("failed to create server cache: %w", err)
	}
	if f.client, err = cache.NewClientCache(cfg, deps); err != nil {
		_ = f.server.Close()
		f.closePublisher()
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}

	f.queue = queue.New(cfg.Queue, f.policy, queue.WithMetrics(f.metrics), queue.WithLogger(logger))

	if f.publisher != nil {
		f.background = metrics.NewBackgroundPublisher(f.publisher, cfg.Metrics.PublishInterval, f.publisherHealth, logger)
		f.background.Start(context.Background())
	}

	f.logger.Info("Fetch facade initialized",
		"upstream", cfg.Upstream.BaseURL,
		"interval", cfg.RateGate.Interval,
		"server_store", f.server.Store().Name(),
		"client_store", f.client.Store().Name(),
		"circuit_breaker", cfg.CircuitBreaker.Enabled,
		"prometheus", f.prom != nil,
	)

	return f, nil
}

// newPublisher picks the external metrics sink. Nil means none.
func newPublisher(cfg config.MetricsConfig, override types.Publisher, logger *slog.Logger) (types.Publisher, error) {
	if override != nil {
		return override, nil
	}
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.DataDog.Enabled {
		p, err := datadog.NewPublisher(cfg.DataDog, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create datadog publisher: %w", err)
		}
		return p, nil
	}
	return metrics.NewLoggingPublisher(logger), nil
}

// Fetch returns the payload for endpoint and params. Fresh cache entries
// are served without touching the queue; everything else waits for its
// turn at the upstream. Generic keys live in the short-lived client tier.
func (f *Facade) Fetch(ctx context.Context, endpoint string, params types.Params, priority types.Priority) (json.RawMessage, error) {
	return f.fetch(ctx, endpoint, params, priority, false)
}

// FetchShared is Fetch for the shared cache path: every cacheable key,
// generic ones included, lives in the server tier under its policy TTL, and
// 429s use the server cooldown.
func (f *Facade) FetchShared(ctx context.Context, endpoint string, params types.Params, priority types.Priority) (json.RawMessage, error) {
	return f.fetch(ctx, endpoint, params, priority, true)
}

func (f *Facade) fetch(ctx context.Context, endpoint string, params types.Params, priority types.Priority, shared bool) (json.RawMessage, error) {
	if f.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := types.ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	key, cacheable := cachekey.Resolve(endpoint, params)
	if !cacheable {
		// Searches and fresh listings neither read nor write any tier.
		tier := types.TierClient
		if shared {
			tier = types.TierServer
		}
		return f.enqueue(ctx, endpoint, params.Query(), priority, tier, nil, "")
	}

	tier := types.TierServer
	if !shared {
		tier = cachekey.Segment(key).Tier()
	}
	c, cacheKey := f.server, key
	if tier == types.TierClient {
		c, cacheKey = f.client, cache.ClientKey(endpoint, params.Args())
	}

	query := params.Query()
	return c.Share(ctx, cacheKey, func(ctx context.Context) (json.RawMessage, error) {
		return f.enqueue(ctx, endpoint, query, priority, tier, c, cacheKey)
	})
}

// enqueue queues one upstream call. When c is set the job stores its own
// result, so a payload still lands in the cache if every caller has left.
func (f *Facade) enqueue(
	ctx context.Context,
	endpoint string,
	query url.Values,
	priority types.Priority,
	tier types.Tier,
	c *cache.Cache,
	key string,
) (json.RawMessage, error) {
	job := queue.Job{
		Priority: priority,
		Tier:     tier,
		Endpoint: endpoint,
		Execute: func(ctx context.Context) (json.RawMessage, error) {
			payload, err := f.upstream.Get(ctx, endpoint, query)
			if err != nil {
				return nil, err
			}

			if c != nil {
				_ = c.Set(ctx, key, payload)
			}
			return payload, nil
		},
	}
	if c != nil {
		// An earlier job for this key may have filled it while we waited.
		job.Cached = func(ctx context.Context) (json.RawMessage, bool) {
			entry, ok := c.Entry(ctx, key)
			if !ok {
				return nil, false
			}
			return entry.Payload, true
		}
	}
	return f.queue.Enqueue(ctx, job)
}

func (f *Facade) onRetry(attempt int, delay time.Duration, err error) {
	endpoint := ""
	if ue, ok := types.AsUpstreamError(err); ok {
		endpoint = ue.Endpoint
	}
	f.logger.Warn("Upstream rate limited, backing off",
		"endpoint", endpoint,
		"attempt", attempt,
		"delay", delay,
	)
	f.metrics.RecordRateLimited(endpoint, attempt)
}

// Invalidate drops the entry a request resolves to. Generic keys are
// dropped from both tiers since either path may hold them. Uncacheable
// requests are a no-op.
func (f *Facade) Invalidate(ctx context.Context, endpoint string, params types.Params) error {
	key, cacheable := cachekey.Resolve(endpoint, params)
	if !cacheable {
		return nil
	}
	if cachekey.Segment(key).Tier() == types.TierClient {
		return errors.Join(
			f.client.Invalidate(ctx, cache.ClientKey(endpoint, params.Args())),
			f.server.Invalidate(ctx, key),
		)
	}
	return f.server.Invalidate(ctx, key)
}

// InvalidateSegment drops every server tier entry of seg. Generic keys share
// no prefix, so the generic segment is a no-op; use Invalidate for those.
func (f *Facade) InvalidateSegment(ctx context.Context, seg types.Segment) error {
	patterns := cachekey.Patterns(seg)
	if len(patterns) == 0 {
		return nil
	}
	f.logger.Info("Invalidating segment", "segment", seg.String(), "patterns", patterns)
	var errs []error
	for _, pattern := range patterns {
		errs = append(errs, f.server.InvalidatePattern(ctx, pattern))
	}
	return errors.Join(errs...)
}

// Clear empties both tiers.
func (f *Facade) Clear(ctx context.Context) error {
	return errors.Join(f.server.Clear(ctx), f.client.Clear(ctx))
}

// Snapshot returns the in-process metrics.
func (f *Facade) Snapshot() types.MetricsSnapshot {
	return f.tracker.Snapshot()
}

// MetricsHandler serves Prometheus metrics, or nil when disabled.
func (f *Facade) MetricsHandler() http.Handler {
	if f.prom == nil {
		return nil
	}
	return f.prom.Handler()
}

// ServerCache exposes the server tier for tooling and tests.
func (f *Facade) ServerCache() *cache.Cache {
	return f.server
}

// ClientCache exposes the client tier for tooling and tests.
func (f *Facade) ClientCache() *cache.Cache {
	return f.client
}

// Config returns the configuration the facade was built with.
func (f *Facade) Config() *config.Config {
	return f.cfg
}

// Close stops the queue, failing waiting jobs with ErrClosed, then closes
// both tiers and the metrics publisher.
func (f *Facade) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)

		var errs []error
		if err := f.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
		if f.background != nil {
			f.background.Stop()
		}
		if err := f.server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server cache: %w", err))
		}
		if err := f.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client cache: %w", err))
		}
		if err := f.closePublisher(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
		f.closeErr = errors.Join(errs...)
		f.logger.Info("Fetch facade closed")
	})
	return f.closeErr
}

func (f *Facade) closePublisher() error {
	if f.publisher == nil {
		return nil
	}
	return f.publisher.Close()
}
