package metrics

import (
	"strconv"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// PublishingRecorder turns recorder events into publisher calls so a
// StatsD agent sees every cache lookup and upstream exchange.
type PublishingRecorder struct {
	publisher types.Publisher
}

func NewPublishingRecorder(p types.Publisher) *PublishingRecorder {
	return &PublishingRecorder{publisher: p}
}

func (r *PublishingRecorder) RecordHit(tier, segment string, latency time.Duration) {
	r.publisher.Incr("cache.lookup", TierTag(tier), SegmentTag(segment), StatusTag("hit"))
	r.publisher.Timing("cache.lookup.latency", latency, TierTag(tier))
}

func (r *PublishingRecorder) RecordMiss(tier, segment string, latency time.Duration) {
	r.publisher.Incr("cache.lookup", TierTag(tier), SegmentTag(segment), StatusTag("miss"))
	r.publisher.Timing("cache.lookup.latency", latency, TierTag(tier))
}

func (r *PublishingRecorder) RecordSet(tier, segment string, size int) {
	r.publisher.Incr("cache.set", TierTag(tier), SegmentTag(segment))
	r.publisher.Histogram("cache.set.bytes", float64(size), TierTag(tier))
}

func (r *PublishingRecorder) RecordShared(tier, segment string) {
	r.publisher.Incr("cache.shared_load", TierTag(tier), SegmentTag(segment))
}

func (r *PublishingRecorder) RecordUpstream(endpoint string, status int, latency time.Duration) {
	r.publisher.Timing("upstream.request", latency, EndpointTag(endpoint), StatusTag(statusClass(status)))
}

func (r *PublishingRecorder) RecordRateLimited(endpoint string, attempt int) {
	r.publisher.Incr("upstream.rate_limited", EndpointTag(endpoint), Tag("attempt", strconv.Itoa(attempt)))
}

func (r *PublishingRecorder) RecordQueueDepth(depth int) {
	r.publisher.Gauge("queue.depth", float64(depth))
}

func (r *PublishingRecorder) RecordError(component, operation string, err error) {
	r.publisher.Incr("errors", ComponentTag(component), Tag("operation", operation))
}

func (r *PublishingRecorder) RecordCircuitBreakerStateChange(from, to string) {
	r.publisher.Event("Circuit breaker "+to, "upstream circuit moved from "+from+" to "+to,
		circuitAlertType(to), CircuitStateTag(to))
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "network"
	case status == 429:
		return "429"
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

func circuitAlertType(state string) string {
	switch state {
	case "open":
		return "error"
	case "half-open":
		return "warning"
	default:
		return "success"
	}
}

var _ types.MetricsRecorder = (*PublishingRecorder)(nil)
