// Package cache implements the two response cache tiers. Both are a Cache
// over a byte Store; they differ only in how long an entry stays fresh and
// which store backs them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// DefaultShutdownTimeout bounds how long Close waits for background work.
const DefaultShutdownTimeout = 5 * time.Second

// DefaultBackgroundOpTimeout is the timeout for background store cleanup.
const DefaultBackgroundOpTimeout = 2 * time.Second

// LoadFunc produces a payload on a cache miss.
type LoadFunc func(ctx context.Context) (json.RawMessage, error)

// Options configures a Cache.
type Options struct {
	Tier types.Tier
	// TTL returns the lifetime of key. Non-positive means the key is not stored.
	TTL func(key string) time.Duration
	// Segment labels metrics. Defaults to the generic segment.
	Segment    func(key string) types.Segment
	Clock      types.Clock
	Serializer types.Serializer
	Metrics    types.MetricsRecorder
	Logger     *slog.Logger
}

// Cache stores upstream payloads as CacheEntry envelopes and decides
// freshness when reading them back. Store and decode failures are logged
// and counted and surface as misses.
type Cache struct {
	tier       types.Tier
	store      types.Store
	ttl        func(string) time.Duration
	segment    func(string) types.Segment
	now        types.Clock
	serializer types.Serializer
	metrics    types.MetricsRecorder
	logger     *slog.Logger

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
	shared atomic.Int64

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// New creates a Cache over store.
func New(store types.Store, opts Options) *Cache {
	if opts.TTL == nil {
		opts.TTL = func(string) time.Duration { return 0 }
	}
	if opts.Segment == nil {
		opts.Segment = func(string) types.Segment { return types.SegmentGeneric }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Serializer == nil {
		opts.Serializer = NewJSONSerializer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	return &Cache{
		tier:           opts.Tier,
		store:          store,
		ttl:            opts.TTL,
		segment:        opts.Segment,
		now:            opts.Clock,
		serializer:     opts.Serializer,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With("component", opts.Tier.String()+"-cache"),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
}

// Tier reports which tier this cache implements.
func (c *Cache) Tier() types.Tier {
	return c.tier
}

// Store returns the backing store.
func (c *Cache) Store() types.Store {
	return c.store
}

// TTL returns the lifetime entries under key get.
func (c *Cache) TTL(key string) time.Duration {
	return c.ttl(key)
}

// Get returns the payload stored under key if it is still fresh.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if c.closed.Load() {
		return nil, false
	}

	start := time.Now()
	entry, ok := c.lookup(ctx, key)
	segment := c.segment(key).String()

	if ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.RecordHit(c.tier.String(), segment, time.Since(start))
		}
		return entry.Payload, true
	}

	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.RecordMiss(c.tier.String(), segment, time.Since(start))
	}
	return nil, false
}

// Entry returns the fresh envelope stored under key without touching the
// hit and miss counters.
func (c *Cache) Entry(ctx context.Context, key string) (*types.CacheEntry, bool) {
	if c.closed.Load() {
		return nil, false
	}
	return c.lookup(ctx, key)
}

func (c *Cache) lookup(ctx context.Context, key string) (*types.CacheEntry, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !types.IsCacheMiss(err) && !types.IsRedisUnavailable(err) {
			c.recordError("get", key, err)
		}
		return nil, false
	}

	var entry types.CacheEntry
	if err := c.serializer.Unmarshal(data, &entry); err != nil {
		c.recordError("decode", key, err)
		c.runBackground(func(ctx context.Context) {
			_ = c.store.Delete(ctx, key)
		})
		return nil, false
	}

	if entry.Key != key || !entry.IsFresh(c.now(), c.ttl(key)) {
		return nil, false
	}
	return &entry, true
}

// Set stores payload under key, stamped with the current time. Keys with a
// non-positive TTL are skipped.
func (c *Cache) Set(ctx context.Context, key string, payload json.RawMessage) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	ttl := c.ttl(key)
	if ttl <= 0 {
		return nil
	}

	data, err := c.serializer.Marshal(types.CacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now(),
	})
	if err != nil {
		c.recordError("encode", key, err)
		return err
	}

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.recordError("set", key, err)
		return err
	}

	c.sets.Add(1)
	if c.metrics != nil {
		c.metrics.RecordSet(c.tier.String(), c.segment(key).String(), len(payload))
	}
	return nil
}

// GetOrLoad returns the fresh payload under key or runs load to produce it.
// Concurrent callers for the same key share one load. A successful result
// is written back; a failed write is logged and does not fail the call.
//
// If the load a caller joined fails only because its originating caller
// went away, the remaining callers start a new one.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load LoadFunc) (json.RawMessage, error) {
	return c.getOrLoad(ctx, key, load, true)
}

// Share is GetOrLoad for loads that store their own result, such as a
// queued upstream job that must land in the cache even after every waiting
// caller has gone.
func (c *Cache) Share(ctx context.Context, key string, load LoadFunc) (json.RawMessage, error) {
	return c.getOrLoad(ctx, key, load, false)
}

func (c *Cache) getOrLoad(ctx context.Context, key string, load LoadFunc, writeBack bool) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	if payload, ok := c.Get(ctx, key); ok {
		return payload, nil
	}

	for {
		var leader bool
		ch := c.group.DoChan(key, func() (any, error) {
			leader = true
			if entry, ok := c.lookup(ctx, key); ok {
				return entry.Payload, nil
			}

			payload, err := load(ctx)
			if err != nil {
				return nil, err
			}

			if writeBack {
				// Write failures only cost a future miss.
				_ = c.Set(ctx, key, payload)
			}
			return payload, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}

		if !leader {
			if isContextError(res.Err) && ctx.Err() == nil {
				continue
			}
			c.shared.Add(1)
			if c.metrics != nil {
				c.metrics.RecordShared(c.tier.String(), c.segment(key).String())
			}
		}

		if res.Err != nil {
			return nil, res.Err
		}

		payload, _ := res.Val.(json.RawMessage)
		if !leader {
			payload = slices.Clone(payload)
		}
		return payload, nil
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Invalidate removes the entry under key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return c.store.Delete(ctx, key)
}

// InvalidatePattern removes every entry matching pattern, for stores that
// support it. Pattern uses a single "*" wildcard.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	pc, ok := c.store.(PatternClearer)
	if !ok {
		return nil
	}
	return pc.ClearByPattern(ctx, pattern)
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return c.store.Clear(ctx)
}

// Stats returns the tier counters.
func (c *Cache) Stats() types.CacheStats {
	stats := types.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
		Shared: c.shared.Load(),
	}
	if mem, ok := memoryStats(c.store); ok {
		stats.Evictions = mem.Evictions()
	}
	return stats
}

// Health reports the availability and usage of the tier.
func (c *Cache) Health() types.TierHealthMetrics {
	stats := c.Stats()
	h := types.TierHealthMetrics{
		Status:      types.HealthStatusHealthy,
		Available:   c.store.IsAvailable(),
		HitCount:    stats.Hits,
		MissCount:   stats.Misses,
		SharedCount: stats.Shared,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		h.HitRatio = float64(stats.Hits) / float64(total)
	}
	if mem, ok := memoryStats(c.store); ok {
		h.EntryCount = mem.EntryCount()
		h.SizeBytes = mem.Size()
		h.UsagePercentage = mem.UsagePercentage()
	}

	switch {
	case c.closed.Load():
		h.Status = types.HealthStatusUnhealthy
	case !h.Available:
		h.Status = types.HealthStatusDegraded
	}
	return h
}

// RedisHealth reports the shared Redis layer, if the tier has one.
func (c *Cache) RedisHealth() types.RedisHealthMetrics {
	rs, ok := redisStore(c.store)
	if !ok {
		return types.RedisHealthMetrics{Status: types.HealthStatusHealthy}
	}

	h := types.RedisHealthMetrics{
		Status:     types.HealthStatusHealthy,
		Enabled:    true,
		Connected:  rs.IsAvailable(),
		ErrorCount: rs.ErrorCount(),
	}
	if !h.Connected {
		h.Status = types.HealthStatusUnhealthy
	}
	return h
}

// Close releases the store using DefaultShutdownTimeout.
func (c *Cache) Close() error {
	return c.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout waits up to timeout for background cleanup, then closes
// the store. It returns ErrShutdownTimeout if the wait was cut short.
func (c *Cache) CloseWithTimeout(timeout time.Duration) error {
	c.bgMu.Lock()
	if c.closed.Swap(true) {
		c.bgMu.Unlock()
		return nil
	}
	c.shutdownCancel()
	c.bgMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-time.After(timeout):
		c.logger.Warn("Shutdown timeout exceeded, closing store", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runBackground runs fn on a tracked goroutine unless the cache is closed.
func (c *Cache) runBackground(fn func(ctx context.Context)) {
	// bgMu orders Add against the Wait in CloseWithTimeout.
	c.bgMu.Lock()
	if c.closed.Load() {
		c.bgMu.Unlock()
		return
	}
	c.bgWg.Add(1)
	c.bgMu.Unlock()

	go func() {
		defer c.bgWg.Done()
		ctx, cancel := context.WithTimeout(c.shutdownCtx, DefaultBackgroundOpTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Cache) recordError(op, key string, err error) {
	c.errors.Add(1)
	c.logger.Debug("Cache operation failed", "op", op, "key", key, "store", c.store.Name(), "error", err)
	if c.metrics != nil {
		c.metrics.RecordError(c.tier.String()+"-cache", op, err)
	}
}

func memoryStats(s types.Store) (types.MemoryStatsProvider, bool) {
	switch st := s.(type) {
	case types.MemoryStatsProvider:
		return st, true
	case *ChainStore:
		return memoryStats(st.Memory())
	default:
		return nil, false
	}
}

func redisStore(s types.Store) (*RedisStore, bool) {
	switch st := s.(type) {
	case *RedisStore:
		return st, true
	case *ChainStore:
		return redisStore(st.Redis())
	default:
		return nil, false
	}
}
