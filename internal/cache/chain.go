package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// PatternClearer is implemented by stores that can drop a key range.
type PatternClearer interface {
	ClearByPattern(ctx context.Context, pattern string) error
}

// ChainStore layers an in-process store over Redis. Reads try memory first
// and back-fill it from Redis; writes go to both. Redis failures never fail
// an operation that memory served.
type ChainStore struct {
	memory types.Store
	redis  types.Store
	logger *slog.Logger
}

func NewChainStore(memory, redis types.Store, logger *slog.Logger) *ChainStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainStore{
		memory: memory,
		redis:  redis,
		logger: logger.With("component", "chain-store"),
	}
}

func (s *ChainStore) Name() string {
	return s.memory.Name() + "+" + s.redis.Name()
}

func (s *ChainStore) IsAvailable() bool {
	return s.memory.IsAvailable() || s.redis.IsAvailable()
}

func (s *ChainStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.memory.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !types.IsCacheMiss(err) {
		s.logger.Debug("Memory read failed", "key", key, "error", err)
	}

	if !s.redis.IsAvailable() {
		return nil, types.ErrCacheMiss
	}

	data, err = s.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Expiry is re-checked by the reader, so the back-filled copy needs no TTL of its own.
	if setErr := s.memory.Set(ctx, key, data, 0); setErr != nil {
		s.logger.Debug("Memory back-fill failed", "key", key, "error", setErr)
	}
	return data, nil
}

func (s *ChainStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	memErr := s.memory.Set(ctx, key, value, ttl)

	var redisErr error
	if s.redis.IsAvailable() {
		redisErr = s.redis.Set(ctx, key, value, ttl)
	}

	if memErr != nil && (redisErr != nil || !s.redis.IsAvailable()) {
		return errors.Join(memErr, redisErr)
	}
	if redisErr != nil {
		s.logger.Debug("Redis write failed", "key", key, "error", redisErr)
	}
	return nil
}

func (s *ChainStore) Delete(ctx context.Context, key string) error {
	err := s.memory.Delete(ctx, key)
	if s.redis.IsAvailable() {
		err = errors.Join(err, s.redis.Delete(ctx, key))
	}
	return err
}

func (s *ChainStore) Clear(ctx context.Context) error {
	err := s.memory.Clear(ctx)
	if s.redis.IsAvailable() {
		err = errors.Join(err, s.redis.Clear(ctx))
	}
	return err
}

func (s *ChainStore) ClearByPattern(ctx context.Context, pattern string) error {
	var err error
	if pc, ok := s.memory.(PatternClearer); ok {
		err = pc.ClearByPattern(ctx, pattern)
	}
	if pc, ok := s.redis.(PatternClearer); ok && s.redis.IsAvailable() {
		err = errors.Join(err, pc.ClearByPattern(ctx, pattern))
	}
	return err
}

func (s *ChainStore) Close() error {
	return errors.Join(s.memory.Close(), s.redis.Close())
}

// Memory returns the in-process layer.
func (s *ChainStore) Memory() types.Store { return s.memory }

// Redis returns the shared layer.
func (s *ChainStore) Redis() types.Store { return s.redis }

var (
	_ types.Store    = (*ChainStore)(nil)
	_ PatternClearer = (*ChainStore)(nil)
)
