// Package ratelimit spaces upstream calls so that the provider's rate limit
// is never exceeded by this process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing the catalog API tolerates.
const DefaultInterval = time.Second

// Gate admits callers no faster than one per interval, measured from the
// start of each admitted call. A Gate is safe for concurrent use and owns
// its own state; construct one per upstream.
type Gate struct {
	mu            sync.Mutex
	limiter       *rate.Limiter
	interval      time.Duration
	lastRequestAt time.Time
	now           func() time.Time
}

// NewGate creates a gate with the given interval. A non-positive interval
// uses DefaultInterval.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Gate{
		limiter:  newLimiter(interval),
		interval: interval,
		now:      time.Now,
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Admit blocks until the next upstream call may start, then records the
// start time. The only error is the context's.
func (g *Gate) Admit(ctx context.Context) error {
	g.mu.Lock()
	limiter := g.limiter
	g.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Wait also fails when the deadline is closer than the next slot.
		return context.DeadlineExceeded
	}

	g.mu.Lock()
	g.lastRequestAt = g.now()
	g.mu.Unlock()
	return nil
}

// LastRequestAt returns when the most recent call was admitted, or the zero
// time if none has been.
func (g *Gate) LastRequestAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRequestAt
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// Reset forgets all admitted calls. The next Admit returns immediately.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = newLimiter(g.interval)
	g.lastRequestAt = time.Time{}
}
