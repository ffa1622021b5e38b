package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/catalogfetch/internal/cachekey"
	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// redisTestAddress returns REDIS_TEST_ADDRESS or localhost:6379.
func redisTestAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func testRedisConfig(prefix string) config.RedisConfig {
	return config.RedisConfig{
		Enabled:      true,
		Address:      redisTestAddress(),
		KeyPrefix:    prefix,
		PoolSize:     5,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolTimeout:  2 * time.Second,
	}
}

// skipIfRedisUnavailable returns an emptied store or skips the test.
func skipIfRedisUnavailable(t *testing.T) *RedisStore {
	t.Helper()

	rs := NewRedisStore(testRedisConfig("catalogfetch:test:"), nil)
	if !rs.IsAvailable() {
		_ = rs.Close()
		t.Skip("Redis is not available")
	}

	_ = rs.Clear(context.Background())
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func TestRedisStoreGetSet(t *testing.T) {
	rs := skipIfRedisUnavailable(t)
	ctx := context.Background()

	t.Run("miss for unknown key", func(t *testing.T) {
		_, err := rs.Get(ctx, "/top/anime")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})

	t.Run("returns stored value", func(t *testing.T) {
		value := []byte(`{"data":[]}`)
		require.NoError(t, rs.Set(ctx, "/seasons/now", value, time.Minute))

		got, err := rs.Get(ctx, "/seasons/now")
		require.NoError(t, err)
		assert.Equal(t, value, got)
	})

	t.Run("applies native expiry", func(t *testing.T) {
		require.NoError(t, rs.Set(ctx, "/schedules/monday", []byte("{}"), 30*time.Minute))

		ttl, err := rs.client.TTL(ctx, rs.prefixKey("/schedules/monday")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 29*time.Minute)
		assert.LessOrEqual(t, ttl, 30*time.Minute)
	})

	t.Run("expires", func(t *testing.T) {
		require.NoError(t, rs.Set(ctx, "short", []byte("v"), 100*time.Millisecond))
		time.Sleep(250 * time.Millisecond)

		_, err := rs.Get(ctx, "short")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})
}

func TestRedisStoreDeleteAndClear(t *testing.T) {
	rs := skipIfRedisUnavailable(t)
	ctx := context.Background()

	for _, key := range []string{"/schedules/monday", "/schedules/friday", "/top/anime"} {
		require.NoError(t, rs.Set(ctx, key, []byte("{}"), time.Minute))
	}

	require.NoError(t, rs.Delete(ctx, "/top/anime"))
	_, err := rs.Get(ctx, "/top/anime")
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	require.NoError(t, rs.ClearByPattern(ctx, "/schedules/*"))
	_, err = rs.Get(ctx, "/schedules/friday")
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	require.NoError(t, rs.Set(ctx, "/seasons/now", []byte("{}"), time.Minute))
	require.NoError(t, rs.Clear(ctx))
	_, err = rs.Get(ctx, "/seasons/now")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func TestRedisStoreClearByPatternMatchesLiteralQuestionMark(t *testing.T) {
	rs := skipIfRedisUnavailable(t)
	ctx := context.Background()

	for _, key := range []string{"/anime?order_by=score", "/anime?sfw=true", "/animeXorder_by=score"} {
		require.NoError(t, rs.Set(ctx, key, []byte("{}"), time.Minute))
	}

	require.NoError(t, rs.ClearByPattern(ctx, "/anime?*"))

	for _, key := range []string{"/anime?order_by=score", "/anime?sfw=true"} {
		_, err := rs.Get(ctx, key)
		assert.ErrorIs(t, err, types.ErrCacheMiss, key)
	}
	_, err := rs.Get(ctx, "/animeXorder_by=score")
	assert.NoError(t, err, "? must not match an arbitrary character")
}

func TestRedisStoreConcurrency(t *testing.T) {
	rs := skipIfRedisUnavailable(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "/anime?page=" + string(rune('a'+i))
			assert.NoError(t, rs.Set(ctx, key, []byte("{}"), time.Minute))
			_, err := rs.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(0), rs.ErrorCount())
}

func TestRedisHealthCheck(t *testing.T) {
	t.Run("worker starts and stops cleanly", func(t *testing.T) {
		cfg := testRedisConfig("catalogfetch:test:healthcheck:")
		cfg.HealthCheckInterval = 100 * time.Millisecond

		rs := NewRedisStore(cfg, nil)
		time.Sleep(250 * time.Millisecond)

		assert.NoError(t, rs.Close())
	})

	t.Run("restores connection after recovery", func(t *testing.T) {
		rs := skipIfRedisUnavailable(t)

		rs.connected.Store(false)
		assert.False(t, rs.IsAvailable())

		rs.performHealthCheck()

		assert.True(t, rs.IsAvailable())
	})
}

func TestChainStoreWithRedis(t *testing.T) {
	ctx := context.Background()
	skipIfRedisUnavailable(t)

	cfg := config.ForTestingWithRedis(redisTestAddress())
	cfg.Redis.KeyPrefix = "catalogfetch:test:chain:"

	// Two instances share Redis, as two function instances would.
	first, err := NewServerCache(cfg, cachekey.DefaultPolicy(), Deps{})
	require.NoError(t, err)
	defer first.Close()
	second, err := NewServerCache(cfg, cachekey.DefaultPolicy(), Deps{})
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Clear(ctx))

	require.NoError(t, first.Set(ctx, "/top/anime", json.RawMessage(`{"data":[1]}`)))

	got, ok := second.Get(ctx, "/top/anime")
	require.True(t, ok, "second instance should read through to Redis")
	assert.JSONEq(t, `{"data":[1]}`, string(got))

	chain, ok := second.Store().(*ChainStore)
	require.True(t, ok)
	_, err = chain.Memory().Get(ctx, "/top/anime")
	assert.NoError(t, err, "Redis hit should back-fill memory")

	health := second.RedisHealth()
	assert.True(t, health.Enabled)
	assert.True(t, health.Connected)
}

func TestGracefulDegradationToMemory(t *testing.T) {
	ctx := context.Background()
	cfg := config.ForTestingWithRedis("localhost:59999")
	cfg.Redis.DialTimeout = 100 * time.Millisecond

	c, err := NewServerCache(cfg, nil, Deps{})
	require.NoError(t, err)
	defer c.Close()

	t.Run("memory keeps serving", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "/seasons/now", json.RawMessage(`{"data":[]}`)))

		got, ok := c.Get(ctx, "/seasons/now")
		require.True(t, ok)
		assert.JSONEq(t, `{"data":[]}`, string(got))
	})

	t.Run("health reports redis down", func(t *testing.T) {
		redis := c.RedisHealth()
		assert.True(t, redis.Enabled)
		assert.False(t, redis.Connected)
		assert.Equal(t, types.HealthStatusUnhealthy, redis.Status)
		assert.True(t, c.Health().Available)
	})
}

func BenchmarkRedisStoreGet(b *testing.B) {
	rs := NewRedisStore(testRedisConfig("catalogfetch:bench:"), nil)
	defer rs.Close()
	if !rs.IsAvailable() {
		b.Skip("Redis is not available")
	}

	ctx := context.Background()
	_ = rs.Set(ctx, "/top/anime", []byte(`{"data":[]}`), time.Minute)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = rs.Get(ctx, "/top/anime")
	}
}
