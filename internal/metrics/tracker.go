// Package metrics collects access layer metrics and forwards them to
// external publishers.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Tracker keeps in-process counters and an upstream latency window. It is
// the recorder behind the client's Metrics() snapshot.
type Tracker struct {
	serverHits   atomic.Int64
	serverMisses atomic.Int64
	clientHits   atomic.Int64
	clientMisses atomic.Int64
	shared       atomic.Int64
	setCount     atomic.Int64
	bytesWritten atomic.Int64
	errorCount   atomic.Int64

	upstreamCalls    atomic.Int64
	upstreamFailures atomic.Int64
	rateLimited      atomic.Int64
	queueDepth       atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int

	cbStateChanges atomic.Int64

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
		now:           time.Now,
	}
}

func (t *Tracker) RecordHit(tier, segment string, latency time.Duration) {
	switch tier {
	case types.TierServer.String():
		t.serverHits.Add(1)
	case types.TierClient.String():
		t.clientHits.Add(1)
	}
}

func (t *Tracker) RecordMiss(tier, segment string, latency time.Duration) {
	switch tier {
	case types.TierServer.String():
		t.serverMisses.Add(1)
	case types.TierClient.String():
		t.clientMisses.Add(1)
	}
}

func (t *Tracker) RecordSet(tier, segment string, size int) {
	t.setCount.Add(1)
	t.bytesWritten.Add(int64(size))
}

func (t *Tracker) RecordShared(tier, segment string) {
	t.shared.Add(1)
}

// RecordUpstream counts one HTTP exchange. Status 0 and 5xx count as
// failures; 429 is tracked separately through RecordRateLimited.
func (t *Tracker) RecordUpstream(endpoint string, status int, latency time.Duration) {
	t.upstreamCalls.Add(1)
	if status == 0 || status >= 500 {
		t.upstreamFailures.Add(1)
	}
	t.recordLatency(latency)
}

func (t *Tracker) RecordRateLimited(endpoint string, attempt int) {
	t.rateLimited.Add(1)
}

func (t *Tracker) RecordQueueDepth(depth int) {
	t.queueDepth.Store(int64(depth))
}

func (t *Tracker) RecordError(component, operation string, err error) {
	t.errorCount.Add(1)
}

func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.cbStateChanges.Add(1)
}

// recordLatency writes into the ring buffer without allocating.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns the current counters and latency percentiles.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	latencies := make([]time.Duration, t.latencyCount)
	if t.latencyCount < len(t.latencyBuffer) {
		copy(latencies, t.latencyBuffer[:t.latencyCount])
	} else {
		n := copy(latencies, t.latencyBuffer[t.latencyIndex:])
		copy(latencies[n:], t.latencyBuffer[:t.latencyIndex])
	}
	t.latencyMu.RUnlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:             t.now(),
		ServerHits:            t.serverHits.Load(),
		ServerMisses:          t.serverMisses.Load(),
		ClientHits:            t.clientHits.Load(),
		ClientMisses:          t.clientMisses.Load(),
		SharedLoads:           t.shared.Load(),
		SetCount:              t.setCount.Load(),
		ErrorCount:            t.errorCount.Load(),
		UpstreamCalls:         t.upstreamCalls.Load(),
		UpstreamFailures:      t.upstreamFailures.Load(),
		RateLimited:           t.rateLimited.Load(),
		QueueDepth:            t.queueDepth.Load(),
		CircuitBreakerChanges: t.cbStateChanges.Load(),
	}

	if len(latencies) > 0 {
		slices.Sort(latencies)
		snapshot.AvgLatencyMs = toMillis(avgDuration(latencies))
		snapshot.P50LatencyMs = toMillis(percentile(latencies, 50))
		snapshot.P95LatencyMs = toMillis(percentile(latencies, 95))
		snapshot.P99LatencyMs = toMillis(percentile(latencies, 99))
	}

	return snapshot
}

// BytesWritten is the total payload size stored across both tiers.
func (t *Tracker) BytesWritten() int64 {
	return t.bytesWritten.Load()
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	t.serverHits.Store(0)
	t.serverMisses.Store(0)
	t.clientHits.Store(0)
	t.clientMisses.Store(0)
	t.shared.Store(0)
	t.setCount.Store(0)
	t.bytesWritten.Store(0)
	t.errorCount.Store(0)
	t.upstreamCalls.Store(0)
	t.upstreamFailures.Store(0)
	t.rateLimited.Store(0)
	t.queueDepth.Store(0)
	t.cbStateChanges.Store(0)

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)*p/100]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var _ types.MetricsRecorder = (*Tracker)(nil)
