package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

const (
	disconnectErrorThreshold = 5
)

// RedisStore shares server tier entries between processes. Entries carry a
// native Redis expiry so stale keys do not accumulate.
type RedisStore struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRedisStore connects to Redis. A failed initial ping is logged and the
// store starts out unavailable; the health check reconnects it later.
func NewRedisStore(cfg config.RedisConfig, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for self-signed dev clusters
		}
		if cfg.TLSSkipVerify {
			logger.Warn("Redis TLS certificate verification is disabled")
		}
	}

	s := &RedisStore{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger.With("component", "redis-store"),
		stopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis initial connection failed", "address", cfg.Address, "error", err)
		s.setError(err)
	} else {
		s.connected.Store(true)
		s.logger.Info("Redis connected", "address", cfg.Address)
	}

	if cfg.HealthCheckInterval > 0 {
		s.wg.Add(1)
		go s.healthCheckWorker()
	}

	return s
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) IsAvailable() bool {
	return s.connected.Load()
}

func (s *RedisStore) prefixKey(key string) string {
	return s.config.KeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.connected.Load() {
		return nil, types.ErrRedisUnavailable
	}

	data, err := s.client.Get(ctx, s.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, types.ErrCacheMiss
		}
		s.handleError(err)
		return nil, types.NewCacheError("Get", key, "redis", err)
	}

	s.clearError()
	return data, nil
}

// Set writes value with a Redis expiry of ttl. A non-positive ttl stores
// the key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.connected.Load() {
		return types.ErrRedisUnavailable
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, s.prefixKey(key), value, ttl).Err(); err != nil {
		s.handleError(err)
		return types.NewCacheError("Set", key, "redis", err)
	}

	s.clearError()
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if !s.connected.Load() {
		return types.ErrRedisUnavailable
	}

	if err := s.client.Del(ctx, s.prefixKey(key)).Err(); err != nil {
		s.handleError(err)
		return types.NewCacheError("Delete", key, "redis", err)
	}

	s.clearError()
	return nil
}

// Clear removes every key under the configured prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.ClearByPattern(ctx, "*")
}

func (s *RedisStore) ClearByPattern(ctx context.Context, pattern string) error {
	if !s.connected.Load() {
		return types.ErrRedisUnavailable
	}

	fullPattern := scanPattern(s.config.KeyPrefix, pattern)

	var cursor uint64
	var deleted int64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			s.handleError(err)
			return types.NewCacheError("ClearByPattern", pattern, "redis", err)
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.handleError(err)
				return types.NewCacheError("ClearByPattern", pattern, "redis", err)
			}
			deleted += int64(len(keys))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug("Cleared keys by pattern", "pattern", fullPattern, "deleted", deleted)
	s.clearError()
	return nil
}

// scanPattern builds a SCAN MATCH glob for a store pattern. Only the "*"
// of pattern stays a wildcard; listing keys carry a literal "?".
func scanPattern(prefix, pattern string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(pattern) + 4)
	escapeGlob(&b, prefix, true)
	escapeGlob(&b, pattern, false)
	return b.String()
}

func escapeGlob(b *strings.Builder, s string, escapeStar bool) {
	for _, r := range s {
		switch r {
		case '\\', '?', '[', ']':
			b.WriteByte('\\')
		case '*':
			if escapeStar {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
}

func (s *RedisStore) healthCheckWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *RedisStore) performHealthCheck() {
	wasConnected := s.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

func (s *RedisStore) Close() error {
	s.stopOnce.Do(func() {
		s.connected.Store(false)
		close(s.stopCh)
	})
	s.wg.Wait()
	return s.client.Close()
}

// ErrorCount returns the number of consecutive failed operations.
func (s *RedisStore) ErrorCount() int64 {
	return s.errorCount.Load()
}

// LastError returns the most recent error and when it happened.
func (s *RedisStore) LastError() (error, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError, s.lastErrorTime
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = err
	s.lastErrorTime = time.Now()
	count := s.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (s *RedisStore) clearError() {
	if s.errorCount.Swap(0) > 0 {
		if s.connected.CompareAndSwap(false, true) {
			s.logger.Info("Redis connection restored")
		}
	}
}

func (s *RedisStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

var (
	_ types.Store              = (*RedisStore)(nil)
	_ types.RedisStatsProvider = (*RedisStore)(nil)
	_ PatternClearer           = (*RedisStore)(nil)
)
