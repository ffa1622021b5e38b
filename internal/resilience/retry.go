package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// RetryPolicy re-attempts calls the upstream rejected with 429. The first
// delay is the cooldown of the calling path; later delays grow by the
// multiplier up to maxBackoff. Any other error ends the call immediately.
type RetryPolicy struct {
	serverCooldown time.Duration
	clientCooldown time.Duration
	maxAttempts    int
	maxBackoff     time.Duration
	multiplier     float64
	jitter         bool
	unbounded      bool

	mu      sync.RWMutex
	onRetry func(attempt int, delay time.Duration, err error)

	totalRetries   atomic.Int64
	totalSuccess   atomic.Int64
	totalFailure   atomic.Int64
	totalExhausted atomic.Int64
}

// NewRetryPolicy creates a new retry policy with the given configuration.
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	rp := &RetryPolicy{
		serverCooldown: cfg.ServerCooldown,
		clientCooldown: cfg.ClientCooldown,
		maxAttempts:    cfg.MaxAttempts,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		jitter:         cfg.Jitter,
		unbounded:      cfg.Unbounded,
	}

	if rp.serverCooldown <= 0 {
		rp.serverCooldown = 2 * time.Second
	}
	if rp.clientCooldown <= 0 {
		rp.clientCooldown = 3 * time.Second
	}
	if rp.maxAttempts <= 0 {
		rp.maxAttempts = 5
	}
	if rp.maxBackoff <= 0 {
		rp.maxBackoff = 30 * time.Second
	}
	if rp.multiplier < 1 {
		rp.multiplier = 2.0
	}

	return rp
}

// Cooldown returns the first backoff for calls made on behalf of tier.
func (rp *RetryPolicy) Cooldown(tier types.Tier) time.Duration {
	if tier == types.TierClient {
		return rp.clientCooldown
	}
	return rp.serverCooldown
}

// SetOnRetry registers a callback invoked before each backoff sleep.
func (rp *RetryPolicy) SetOnRetry(fn func(attempt int, delay time.Duration, err error)) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.onRetry = fn
}

// ExecuteCtx runs fn until it succeeds, fails with a non-429 error, or the
// attempt budget is spent. Exhaustion returns an error matching both
// types.ErrRetriesExhausted and the last upstream error.
func (rp *RetryPolicy) ExecuteCtx(ctx context.Context, tier types.Tier, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; rp.unbounded || attempt <= rp.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			rp.totalSuccess.Add(1)
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			rp.totalFailure.Add(1)
			return err
		}

		if !rp.unbounded && attempt == rp.maxAttempts {
			break
		}

		rp.totalRetries.Add(1)
		delay := rp.backoff(tier, attempt, err)
		rp.notify(attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	rp.totalFailure.Add(1)
	rp.totalExhausted.Add(1)
	return fmt.Errorf("%w after %d attempts: %w", types.ErrRetriesExhausted, rp.maxAttempts, lastErr)
}

func (rp *RetryPolicy) notify(attempt int, delay time.Duration, err error) {
	rp.mu.RLock()
	fn := rp.onRetry
	rp.mu.RUnlock()
	if fn != nil {
		fn(attempt, delay, err)
	}
}

// backoff returns the delay after the given failed attempt. In unbounded
// mode the delay stays at the cooldown. A Retry-After hint from the
// upstream raises the delay to at least that value.
func (rp *RetryPolicy) backoff(tier types.Tier, attempt int, err error) time.Duration {
	cooldown := rp.Cooldown(tier)

	delay := float64(cooldown)
	if !rp.unbounded {
		delay *= math.Pow(rp.multiplier, float64(attempt-1))
		if delay > float64(rp.maxBackoff) {
			delay = float64(rp.maxBackoff)
		}
	}

	// Add jitter (±25%)
	if rp.jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	d := time.Duration(delay)
	if ue, ok := types.AsUpstreamError(err); ok && ue.RetryAfter > d {
		d = ue.RetryAfter
	}
	return d
}

// RetryStats contains retry statistics.
type RetryStats struct {
	Retries   int64
	Success   int64
	Failure   int64
	Exhausted int64
}

// Stats returns retry statistics.
func (rp *RetryPolicy) Stats() RetryStats {
	return RetryStats{
		Retries:   rp.totalRetries.Load(),
		Success:   rp.totalSuccess.Load(),
		Failure:   rp.totalFailure.Load(),
		Exhausted: rp.totalExhausted.Load(),
	}
}

// Reset resets the statistics.
func (rp *RetryPolicy) Reset() {
	rp.totalRetries.Store(0)
	rp.totalSuccess.Store(0)
	rp.totalFailure.Store(0)
	rp.totalExhausted.Store(0)
}
