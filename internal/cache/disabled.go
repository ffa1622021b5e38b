package cache

import (
	"context"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// DisabledStore stores nothing. A tier configured off is backed by it, so
// every lookup misses and every fetch goes upstream.
type DisabledStore struct {
	name string
}

func NewDisabledStore(name string) *DisabledStore {
	return &DisabledStore{name: name + "-disabled"}
}

func (s *DisabledStore) Name() string      { return s.name }
func (s *DisabledStore) IsAvailable() bool { return false }
func (s *DisabledStore) Close() error      { return nil }

func (s *DisabledStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

func (s *DisabledStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (s *DisabledStore) Delete(ctx context.Context, key string) error { return nil }
func (s *DisabledStore) Clear(ctx context.Context) error              { return nil }

var _ types.Store = (*DisabledStore)(nil)
