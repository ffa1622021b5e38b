package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// MemoryStore is an in-process Store backed by BigCache.
//
// BigCache has a single life window for all entries, so the window is set
// to the longest lifetime the owning tier hands out and the per-entry TTL
// passed to Set is only checked when the entry is read back.
type MemoryStore struct {
	cache      *bigcache.BigCache
	config     config.MemoryConfig
	name       string
	lifeWindow time.Duration
	logger     *slog.Logger

	evictions atomic.Int64
	closed    atomic.Bool
}

// NewMemoryStore creates a memory store whose entries are physically kept
// for at least lifeWindow.
func NewMemoryStore(name string, cfg config.MemoryConfig, lifeWindow time.Duration, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// BigCache timestamps entries with second resolution.
	lifeWindow = lifeWindow.Truncate(time.Second) + time.Second

	ms := &MemoryStore{
		config:     cfg,
		name:       name,
		lifeWindow: lifeWindow,
		logger:     logger.With("component", name),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         lifeWindow,
		CleanWindow:        cfg.CleanupInterval,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   hardLimit(cfg),
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: ms.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				ms.evictions.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	ms.cache = bc
	return ms, nil
}

func hardLimit(cfg config.MemoryConfig) int {
	if cfg.HardMaxCacheSize {
		return cfg.MaxSizeMB
	}
	return 0
}

// Name returns the store name.
func (s *MemoryStore) Name() string {
	return s.name
}

// IsAvailable returns true if the store is not closed.
func (s *MemoryStore) IsAvailable() bool {
	return !s.closed.Load()
}

// Get retrieves a value from the memory store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, types.ErrCacheMiss
		}
		return nil, types.NewCacheError("Get", key, s.name, err)
	}
	return data, nil
}

// Set stores a value. ttl is not enforced here; see MemoryStore.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if ttl > s.lifeWindow {
		s.logger.Debug("Entry outlives memory life window", "key", key, "ttl", ttl, "window", s.lifeWindow)
	}

	if err := s.cache.Set(key, value); err != nil {
		return types.NewCacheError("Set", key, s.name, err)
	}
	return nil
}

// Delete removes a value from the memory store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return types.NewCacheError("Delete", key, s.name, err)
	}
	return nil
}

// Clear removes all entries from the memory store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	return s.cache.Reset()
}

// ClearByPattern removes entries whose key matches pattern. A single "*"
// wildcard is supported at the start, end or middle of the pattern.
func (s *MemoryStore) ClearByPattern(ctx context.Context, pattern string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	var keysToDelete []string

	iter := s.cache.Iterator()
	for iter.SetNext() {
		entry, err := iter.Value()
		if err != nil {
			continue
		}
		if matchPattern(entry.Key(), pattern) {
			keysToDelete = append(keysToDelete, entry.Key())
		}
	}

	for _, key := range keysToDelete {
		_ = s.cache.Delete(key)
	}

	s.logger.Debug("Cleared entries by pattern",
		"pattern", pattern,
		"deleted", len(keysToDelete),
	)
	return nil
}

// Close closes the memory store and releases resources.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.cache.Close()
}

// EntryCount returns the number of entries in the memory store.
func (s *MemoryStore) EntryCount() int {
	return s.cache.Len()
}

// Size returns the allocated size of the memory store in bytes.
func (s *MemoryStore) Size() int64 {
	return int64(s.cache.Capacity())
}

// MaxSize returns the configured size of the memory store in bytes.
func (s *MemoryStore) MaxSize() int64 {
	return int64(s.config.MaxSizeMB) * 1024 * 1024
}

// UsagePercentage returns the memory store usage as a percentage.
func (s *MemoryStore) UsagePercentage() float64 {
	maxBytes := s.MaxSize()
	if maxBytes == 0 {
		return 0
	}
	return float64(s.Size()) / float64(maxBytes) * 100
}

// Evictions returns how many entries BigCache dropped for age or space.
func (s *MemoryStore) Evictions() int64 {
	return s.evictions.Load()
}

func matchPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}

	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(key, suffix)
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(key, parts[0]) && strings.HasSuffix(key, parts[1])
		}
	}

	return key == pattern
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug("bigcache: "+format, args...)
}

var (
	_ types.Store               = (*MemoryStore)(nil)
	_ types.MemoryStatsProvider = (*MemoryStore)(nil)
	_ PatternClearer            = (*MemoryStore)(nil)
)
