package metrics

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// NoOpRecorder discards every event.
type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (NoOpRecorder) RecordHit(tier, segment string, latency time.Duration)             {}
func (NoOpRecorder) RecordMiss(tier, segment string, latency time.Duration)            {}
func (NoOpRecorder) RecordSet(tier, segment string, size int)                          {}
func (NoOpRecorder) RecordShared(tier, segment string)                                 {}
func (NoOpRecorder) RecordUpstream(endpoint string, status int, latency time.Duration) {}
func (NoOpRecorder) RecordRateLimited(endpoint string, attempt int)                    {}
func (NoOpRecorder) RecordQueueDepth(depth int)                                        {}
func (NoOpRecorder) RecordError(component, operation string, err error)                {}
func (NoOpRecorder) RecordCircuitBreakerStateChange(from, to string)                   {}

// NoOpPublisher is used when no external sink is configured.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (NoOpPublisher) Gauge(name string, value float64, tags ...string)           {}
func (NoOpPublisher) Incr(name string, tags ...string)                           {}
func (NoOpPublisher) Count(name string, value int64, tags ...string)             {}
func (NoOpPublisher) Histogram(name string, value float64, tags ...string)       {}
func (NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (NoOpPublisher) Event(title, text, alertType string, tags ...string)        {}
func (NoOpPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics)       {}
func (NoOpPublisher) Close() error                                               { return nil }

var (
	_ types.MetricsRecorder = NoOpRecorder{}
	_ types.Publisher       = NoOpPublisher{}
)
