package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// BackgroundPublisher samples access layer health on a fixed interval and
// hands each sample to a Publisher. A final sample is sent on Stop.
type BackgroundPublisher struct {
	publisher types.Publisher
	sample    func() *types.PublisherHealthMetrics
	interval  time.Duration
	logger    *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}

	samples atomic.Int64
	panics  atomic.Int64
}

// NewBackgroundPublisher creates the loop without starting it. sample may
// return nil to skip a tick. A non-positive interval means 10s.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	sample func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &BackgroundPublisher{
		publisher: publisher,
		sample:    sample,
		interval:  interval,
		logger:    logger.With("component", "metrics-background"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the loop once. It ends when ctx is cancelled or Stop is
// called.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.run(ctx)
		b.logger.Info("Background metrics publisher started", "interval", b.interval)
	})
}

// Stop ends the loop and waits for the final sample. It is safe to call
// without Start.
func (b *BackgroundPublisher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		started := true
		b.startOnce.Do(func() { started = false })
		if started {
			<-b.done
		}
		b.logger.Info("Background metrics publisher stopped", "samples", b.samples.Load())
	})
}

func (b *BackgroundPublisher) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.publish()
		case <-ctx.Done():
			b.publish()
			return
		case <-b.stop:
			b.publish()
			return
		}
	}
}

func (b *BackgroundPublisher) publish() {
	if b.sample == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("Recovered from panic while publishing health sample", "panic", r)
		}
	}()

	timer := NewTimer(b.publisher, "publisher.sample")
	m := b.sample()
	timer.Stop()
	if m == nil {
		return
	}
	b.publisher.PublishHealthMetrics(m)
	b.samples.Add(1)
}

// PublishNow sends one sample synchronously.
func (b *BackgroundPublisher) PublishNow() {
	b.publish()
}

// Samples returns how many samples reached the publisher.
func (b *BackgroundPublisher) Samples() int64 {
	return b.samples.Load()
}
