package types

import (
	"context"
	"time"
)

type StoreInfo interface {
	Name() string
	IsAvailable() bool
}

type StoreReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type StoreWriter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type StoreClearer interface {
	Clear(ctx context.Context) error
}

type StoreCloser interface {
	Close() error
}

// Store is a byte-oriented cache backend. The TTL passed to Set is a
// retention hint; freshness is decided by the Cache reading the entry.
type Store interface {
	StoreInfo
	StoreReader
	StoreWriter
	StoreClearer
	StoreCloser
}

type MemoryStatsProvider interface {
	EntryCount() int
	Size() int64
	MaxSize() int64
	UsagePercentage() float64
	Evictions() int64
}

type RedisStatsProvider interface {
	ErrorCount() int64
}

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

type MetricsRecorder interface {
	RecordHit(tier, segment string, latency time.Duration)
	RecordMiss(tier, segment string, latency time.Duration)
	RecordSet(tier, segment string, size int)
	RecordShared(tier, segment string)
	RecordUpstream(endpoint string, status int, latency time.Duration)
	RecordRateLimited(endpoint string, attempt int)
	RecordQueueDepth(depth int)
	RecordError(component, operation string, err error)
	RecordCircuitBreakerStateChange(from, to string)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher pushes metrics to an external sink such as a StatsD agent.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishHealthMetrics(m *PublisherHealthMetrics)
	Close() error
}
