package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

func TestNewTracker(t *testing.T) {
	tracker := NewTracker()

	snapshot := tracker.Snapshot()
	if snapshot.ServerHits != 0 || snapshot.UpstreamCalls != 0 {
		t.Errorf("initial snapshot not empty: %+v", snapshot)
	}
	if snapshot.AvgLatencyMs != 0 {
		t.Errorf("AvgLatencyMs = %v, want 0 with no samples", snapshot.AvgLatencyMs)
	}
}

func TestTrackerTiers(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordHit("server", "top-anime", time.Millisecond)
	tracker.RecordHit("server", "schedules", time.Millisecond)
	tracker.RecordMiss("server", "top-anime", time.Millisecond)
	tracker.RecordHit("client", "generic", time.Millisecond)
	tracker.RecordMiss("client", "generic", time.Millisecond)
	tracker.RecordMiss("client", "generic", time.Millisecond)
	tracker.RecordHit("bogus", "generic", time.Millisecond)

	s := tracker.Snapshot()
	if s.ServerHits != 2 || s.ServerMisses != 1 {
		t.Errorf("server hits/misses = %d/%d, want 2/1", s.ServerHits, s.ServerMisses)
	}
	if s.ClientHits != 1 || s.ClientMisses != 2 {
		t.Errorf("client hits/misses = %d/%d, want 1/2", s.ClientHits, s.ClientMisses)
	}
	if got := s.ServerHitRatio(); got < 0.66 || got > 0.67 {
		t.Errorf("ServerHitRatio() = %v, want ~0.667", got)
	}
}

func TestTrackerUpstream(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordUpstream("/top/anime", 200, 100*time.Millisecond)
	tracker.RecordUpstream("/top/anime", 429, 10*time.Millisecond)
	tracker.RecordUpstream("/top/anime", 503, 10*time.Millisecond)
	tracker.RecordUpstream("/top/anime", 0, 10*time.Millisecond)
	tracker.RecordRateLimited("/top/anime", 1)
	tracker.RecordQueueDepth(4)
	tracker.RecordQueueDepth(2)

	s := tracker.Snapshot()
	if s.UpstreamCalls != 4 {
		t.Errorf("UpstreamCalls = %d, want 4", s.UpstreamCalls)
	}
	if s.UpstreamFailures != 2 {
		t.Errorf("UpstreamFailures = %d, want 2 (5xx and network)", s.UpstreamFailures)
	}
	if s.RateLimited != 1 {
		t.Errorf("RateLimited = %d, want 1", s.RateLimited)
	}
	if s.QueueDepth != 2 {
		t.Errorf("QueueDepth = %d, want last recorded depth 2", s.QueueDepth)
	}
}

func TestTrackerCounters(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordSet("server", "top-anime", 100)
	tracker.RecordSet("client", "generic", 50)
	tracker.RecordShared("server", "top-anime")
	tracker.RecordError("server-cache", "set", errors.New("boom"))
	tracker.RecordCircuitBreakerStateChange("closed", "open")

	s := tracker.Snapshot()
	if s.SetCount != 2 || tracker.BytesWritten() != 150 {
		t.Errorf("SetCount = %d, BytesWritten = %d, want 2 and 150", s.SetCount, tracker.BytesWritten())
	}
	if s.SharedLoads != 1 || s.ErrorCount != 1 || s.CircuitBreakerChanges != 1 {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestTrackerLatencyPercentiles(t *testing.T) {
	tracker := NewTracker()

	for i := 1; i <= 100; i++ {
		tracker.RecordUpstream("/anime", 200, time.Duration(i)*time.Millisecond)
	}

	s := tracker.Snapshot()
	if s.P50LatencyMs != 50 {
		t.Errorf("P50LatencyMs = %v, want 50", s.P50LatencyMs)
	}
	if s.P95LatencyMs != 95 {
		t.Errorf("P95LatencyMs = %v, want 95", s.P95LatencyMs)
	}
	if s.P99LatencyMs != 99 {
		t.Errorf("P99LatencyMs = %v, want 99", s.P99LatencyMs)
	}
	if s.AvgLatencyMs != 50.5 {
		t.Errorf("AvgLatencyMs = %v, want 50.5", s.AvgLatencyMs)
	}
}

func TestTrackerLatencyRingBufferWraps(t *testing.T) {
	tracker := NewTracker()

	for range defaultLatencyBufferSize {
		tracker.RecordUpstream("/anime", 200, time.Second)
	}
	for range defaultLatencyBufferSize {
		tracker.RecordUpstream("/anime", 200, time.Millisecond)
	}

	if s := tracker.Snapshot(); s.P99LatencyMs != 1 {
		t.Errorf("P99LatencyMs = %v, want old samples overwritten", s.P99LatencyMs)
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordHit("server", "top-anime", time.Millisecond)
	tracker.RecordUpstream("/top/anime", 200, time.Millisecond)
	tracker.RecordSet("server", "top-anime", 10)

	tracker.Reset()

	s := tracker.Snapshot()
	if s.ServerHits != 0 || s.UpstreamCalls != 0 || s.AvgLatencyMs != 0 || tracker.BytesWritten() != 0 {
		t.Errorf("snapshot after Reset = %+v", s)
	}
}

func TestTrackerConcurrency(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tracker.RecordHit("server", "top-anime", time.Millisecond)
				tracker.RecordUpstream("/top/anime", 200, time.Millisecond)
				_ = tracker.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := tracker.Snapshot()
	if s.ServerHits != 2000 || s.UpstreamCalls != 2000 {
		t.Errorf("ServerHits = %d, UpstreamCalls = %d, want 2000 each", s.ServerHits, s.UpstreamCalls)
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Tag("env", "prod"), "env:prod"},
		{TierTag("server"), "tier:server"},
		{SegmentTag("schedules"), "segment:schedules"},
		{EndpointTag("/top/anime"), "endpoint:/top/anime"},
		{StatusTag("hit"), "status:hit"},
		{ComponentTag("queue"), "component:queue"},
		{CircuitStateTag("open"), "circuit_state:open"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

// recordingPublisher captures publisher calls as "kind name tags" lines.
type recordingPublisher struct {
	mu     sync.Mutex
	calls  []string
	health []*types.PublisherHealthMetrics
	closed bool
}

func (p *recordingPublisher) add(kind, name string, tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, kind+" "+name+" "+strings.Join(tags, ","))
}

func (p *recordingPublisher) Gauge(name string, _ float64, tags ...string)   { p.add("gauge", name, tags) }
func (p *recordingPublisher) Incr(name string, tags ...string)               { p.add("incr", name, tags) }
func (p *recordingPublisher) Count(name string, _ int64, tags ...string)     { p.add("count", name, tags) }
func (p *recordingPublisher) Histogram(name string, _ float64, tags ...string) {
	p.add("histogram", name, tags)
}
func (p *recordingPublisher) Timing(name string, _ time.Duration, tags ...string) {
	p.add("timing", name, tags)
}
func (p *recordingPublisher) Event(title, _, alertType string, tags ...string) {
	p.add("event:"+alertType, title, tags)
}
func (p *recordingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = append(p.health, m)
}
func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *recordingPublisher) HealthCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.health)
}

func TestPublishingRecorder(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewPublishingRecorder(pub)

	r.RecordHit("server", "top-anime", time.Millisecond)
	r.RecordUpstream("/top/anime", 429, time.Millisecond)
	r.RecordUpstream("/top/anime", 0, time.Millisecond)
	r.RecordUpstream("/top/anime", 502, time.Millisecond)
	r.RecordRateLimited("/top/anime", 2)
	r.RecordCircuitBreakerStateChange("closed", "open")

	want := []string{
		"incr cache.lookup tier:server,segment:top-anime,status:hit",
		"timing cache.lookup.latency tier:server",
		"timing upstream.request endpoint:/top/anime,status:429",
		"timing upstream.request endpoint:/top/anime,status:network",
		"timing upstream.request endpoint:/top/anime,status:5xx",
		"incr upstream.rate_limited endpoint:/top/anime,attempt:2",
		"event:error Circuit breaker open circuit_state:open",
	}
	got := pub.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMultiRecorder(t *testing.T) {
	a, b := NewTracker(), NewTracker()

	if _, ok := NewMultiRecorder().(NoOpRecorder); !ok {
		t.Error("NewMultiRecorder() with no recorders should be a no-op")
	}
	if got := NewMultiRecorder(nil, a); got != types.MetricsRecorder(a) {
		t.Error("NewMultiRecorder() with one recorder should return it")
	}

	m := NewMultiRecorder(a, nil, b)
	m.RecordHit("client", "generic", time.Millisecond)
	m.RecordQueueDepth(3)

	for _, tr := range []*Tracker{a, b} {
		s := tr.Snapshot()
		if s.ClientHits != 1 || s.QueueDepth != 3 {
			t.Errorf("fan-out snapshot = %+v", s)
		}
	}
}

func TestLoggingPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewLoggingPublisher(logger, "env:test")

	p.Incr("cache.lookup", "tier:server")
	p.PublishHealthMetrics(&types.PublisherHealthMetrics{QueueDepth: 3, RedisConnected: true})
	p.PublishHealthMetrics(nil)

	out := buf.String()
	for _, want := range []string{
		"msg=incr", "name=cache.lookup", "env:test tier:server",
		"msg=health_metrics", "queue_depth=3", "redis_connected=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "health_metrics") != 1 {
		t.Error("nil health metrics should not be logged")
	}
}

func TestTimer(t *testing.T) {
	pub := &recordingPublisher{}
	timer := NewTimer(pub, "op", "tier:server")
	time.Sleep(time.Millisecond)

	if d := timer.Stop(); d < time.Millisecond {
		t.Errorf("Stop() = %v, want >= 1ms", d)
	}
	if got := pub.Calls(); len(got) != 1 || got[0] != "timing op tier:server" {
		t.Errorf("calls = %v", got)
	}
}

func TestBackgroundPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	var samples atomic.Int32

	bp := NewBackgroundPublisher(pub, 10*time.Millisecond, func() *types.PublisherHealthMetrics {
		samples.Add(1)
		return &types.PublisherHealthMetrics{QueueDepth: int(samples.Load())}
	}, nil)

	bp.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for pub.HealthCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	bp.Stop()

	if pub.HealthCount() < 3 {
		t.Errorf("published %d samples, want at least 2 ticks plus a final one", pub.HealthCount())
	}
	if got := bp.Samples(); got != int64(pub.HealthCount()) {
		t.Errorf("Samples() = %d, publisher saw %d", got, pub.HealthCount())
	}
	bp.Stop()
}

func TestBackgroundPublisherStopWithoutStart(t *testing.T) {
	pub := &recordingPublisher{}
	bp := NewBackgroundPublisher(pub, time.Millisecond, func() *types.PublisherHealthMetrics {
		return &types.PublisherHealthMetrics{}
	}, nil)

	done := make(chan struct{})
	go func() {
		bp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked on a publisher that never started")
	}
	bp.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	if pub.HealthCount() != 0 {
		t.Error("Start() after Stop() should not publish")
	}
}

func TestBackgroundPublisherRecoversFromPanic(t *testing.T) {
	pub := &recordingPublisher{}
	bp := NewBackgroundPublisher(pub, time.Hour, func() *types.PublisherHealthMetrics {
		panic("sampler failed")
	}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	bp.PublishNow()

	if pub.HealthCount() != 0 {
		t.Error("no sample should be published after a panic")
	}
}

func TestNoOps(t *testing.T) {
	var r types.MetricsRecorder = NewNoOpRecorder()
	r.RecordHit("server", "top-anime", time.Millisecond)
	r.RecordError("queue", "enqueue", errors.New("x"))

	var p types.Publisher = NewNoOpPublisher()
	p.PublishHealthMetrics(&types.PublisherHealthMetrics{})
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
