package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/LavishGent/catalogfetch/internal/cachekey"
	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// Deps carries collaborators shared by both tiers.
type Deps struct {
	Logger  *slog.Logger
	Metrics types.MetricsRecorder
	Clock   types.Clock
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// NewServerCache builds the long-lived, segmented tier. Entry lifetimes come
// from policy; the backing store follows cfg.ServerCache.Level.
func NewServerCache(cfg *config.Config, policy *cachekey.Policy, deps Deps) (*Cache, error) {
	if policy == nil {
		policy = cachekey.NewPolicy(cfg.ServerCache.TTLs)
	}

	store, err := newServerStore(cfg, policy, deps.logger())
	if err != nil {
		return nil, err
	}

	return New(store, Options{
		Tier:    types.TierServer,
		TTL:     policy.TTLForKey,
		Segment: cachekey.Segment,
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}), nil
}

func newServerStore(cfg *config.Config, policy *cachekey.Policy, logger *slog.Logger) (types.Store, error) {
	if !cfg.ServerCache.Enabled {
		return NewDisabledStore("server"), nil
	}

	level := types.ParseCacheLevel(cfg.ServerCache.Level)
	if level.IncludesRedis() && !cfg.Redis.Enabled {
		logger.Warn("Server cache level needs Redis but Redis is disabled, using memory only", "level", level.String())
		level = types.LevelMemoryOnly
	}

	var memory types.Store
	if level.IncludesMemory() {
		ms, err := NewMemoryStore("server-memory", cfg.ServerCache.Memory, policy.Longest(), logger)
		if err != nil {
			return nil, fmt.Errorf("server memory store: %w", err)
		}
		memory = ms
	}

	switch level {
	case types.LevelRedisOnly:
		return NewRedisStore(cfg.Redis, logger), nil
	case types.LevelMemoryThenRedis:
		return NewChainStore(memory, NewRedisStore(cfg.Redis, logger), logger), nil
	default:
		return memory, nil
	}
}

// NewClientCache builds the short-lived tier that collapses bursts of
// identical generic calls. Every entry lives cfg.ClientCache.TTL.
func NewClientCache(cfg *config.Config, deps Deps) (*Cache, error) {
	ttl := cfg.ClientCache.TTL
	if ttl <= 0 {
		ttl = config.DefaultClientCacheTTL
	}

	var store types.Store
	if cfg.ClientCache.Enabled {
		ms, err := NewMemoryStore("client-memory", cfg.ClientCache.Memory, ttl, deps.logger())
		if err != nil {
			return nil, fmt.Errorf("client memory store: %w", err)
		}
		store = ms
	} else {
		store = NewDisabledStore("client")
	}

	return New(store, Options{
		Tier:    types.TierClient,
		TTL:     func(string) time.Duration { return ttl },
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}), nil
}

// ClientKey builds the client tier key of an operation and its encoded
// arguments.
func ClientKey(op, args string) string {
	if args == "" {
		return op
	}
	return op + "?" + args
}
