package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/LavishGent/catalogfetch/internal/cachekey"
	"github.com/LavishGent/catalogfetch/internal/config"
)

func benchMemoryStore(b *testing.B) *MemoryStore {
	b.Helper()
	cfg := config.DefaultConfig().ServerCache.Memory
	store, err := NewMemoryStore("bench", cfg, 12*time.Hour, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func BenchmarkMemoryStore_Set(b *testing.B) {
	store := benchMemoryStore(b)
	ctx := context.Background()
	value := []byte(`{"data":[{"mal_id":1}]}`)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = store.Set(ctx, fmt.Sprintf("/anime/%d", i), value, time.Hour)
	}
}

func BenchmarkMemoryStore_GetParallel(b *testing.B) {
	store := benchMemoryStore(b)
	ctx := context.Background()
	for i := range 1000 {
		_ = store.Set(ctx, fmt.Sprintf("/anime/%d", i), []byte(`{}`), time.Hour)
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = store.Get(ctx, fmt.Sprintf("/anime/%d", i%1000))
			i++
		}
	})
}

func BenchmarkCache_GetHit(b *testing.B) {
	c, err := NewServerCache(config.ForTesting(), cachekey.DefaultPolicy(), Deps{})
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	_ = c.Set(ctx, "/top/anime", json.RawMessage(`{"data":[]}`))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "/top/anime")
	}
}

func BenchmarkCache_SetBySize(b *testing.B) {
	for _, size := range []int{1024, 10 * 1024, 100 * 1024} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			cfg := config.DefaultConfig()
			c, err := NewServerCache(cfg, cachekey.DefaultPolicy(), Deps{})
			if err != nil {
				b.Fatal(err)
			}
			defer c.Close()

			payload := make([]byte, 0, size+16)
			payload = append(payload, `{"blob":"`...)
			for len(payload) < size {
				payload = append(payload, 'x')
			}
			payload = append(payload, `"}`...)

			ctx := context.Background()
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = c.Set(ctx, "/top/anime", payload)
			}
		})
	}
}
