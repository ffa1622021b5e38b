package metrics

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// MultiRecorder fans every event out to several recorders in order.
type MultiRecorder []types.MetricsRecorder

// NewMultiRecorder drops nil entries and returns a single recorder when
// only one remains.
func NewMultiRecorder(recorders ...types.MetricsRecorder) types.MetricsRecorder {
	out := make(MultiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return NoOpRecorder{}
	case 1:
		return out[0]
	default:
		return out
	}
}

func (m MultiRecorder) RecordHit(tier, segment string, latency time.Duration) {
	for _, r := range m {
		r.RecordHit(tier, segment, latency)
	}
}

func (m MultiRecorder) RecordMiss(tier, segment string, latency time.Duration) {
	for _, r := range m {
		r.RecordMiss(tier, segment, latency)
	}
}

func (m MultiRecorder) RecordSet(tier, segment string, size int) {
	for _, r := range m {
		r.RecordSet(tier, segment, size)
	}
}

func (m MultiRecorder) RecordShared(tier, segment string) {
	for _, r := range m {
		r.RecordShared(tier, segment)
	}
}

func (m MultiRecorder) RecordUpstream(endpoint string, status int, latency time.Duration) {
	for _, r := range m {
		r.RecordUpstream(endpoint, status, latency)
	}
}

func (m MultiRecorder) RecordRateLimited(endpoint string, attempt int) {
	for _, r := range m {
		r.RecordRateLimited(endpoint, attempt)
	}
}

func (m MultiRecorder) RecordQueueDepth(depth int) {
	for _, r := range m {
		r.RecordQueueDepth(depth)
	}
}

func (m MultiRecorder) RecordError(component, operation string, err error) {
	for _, r := range m {
		r.RecordError(component, operation, err)
	}
}

func (m MultiRecorder) RecordCircuitBreakerStateChange(from, to string) {
	for _, r := range m {
		r.RecordCircuitBreakerStateChange(from, to)
	}
}

var _ types.MetricsRecorder = MultiRecorder(nil)
