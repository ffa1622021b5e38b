package resilience

import (
	"context"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// Admitter spaces upstream calls. ratelimit.Gate implements it.
type Admitter interface {
	Admit(ctx context.Context) error
}

// CircuitBreakerExecutor defines the interface for circuit breaker operations.
type CircuitBreakerExecutor interface {
	Execute(fn func() (any, error)) (any, error)
	Allow() bool
	RecordSuccess()
	RecordFailure()
	State() State
	IsOpen() bool
	SetOnStateChange(fn func(from, to State))
}

// RetryExecutor defines the interface for retry operations.
type RetryExecutor interface {
	ExecuteCtx(ctx context.Context, tier types.Tier, fn func(context.Context) error) error
	SetOnRetry(fn func(attempt int, delay time.Duration, err error))
	Stats() RetryStats
}

// Policy wraps every upstream attempt.
// Execution order: Retry -> Gate -> Circuit Breaker -> Operation
//
//   - Retry (outermost): a 429 sends the job back through the gate after
//     its cooldown, so a re-attempt is spaced like any other call.
//   - Gate: every attempt, first or repeated, waits for its slot.
//   - Circuit Breaker (innermost): each attempt counts towards circuit state.
//     An open circuit fails with ErrCircuitOpen, which is never retried.
type Policy struct {
	gate           Admitter
	retry          RetryExecutor
	circuitBreaker CircuitBreakerExecutor
}

// NewPolicy creates a new resilience policy from the given configuration.
func NewPolicy(cfg *config.Config, gate Admitter) *Policy {
	p := &Policy{
		gate:  gate,
		retry: NewRetryPolicy(cfg.Retry),
	}

	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(cfg.CircuitBreaker)
	} else {
		p.circuitBreaker = NewDisabledCircuitBreaker()
	}

	return p
}

// Execute runs one logical upstream call for tier until it settles.
func (p *Policy) Execute(ctx context.Context, tier types.Tier, fn func(context.Context) error) error {
	return p.retry.ExecuteCtx(ctx, tier, func(ctx context.Context) error {
		if p.gate != nil {
			if err := p.gate.Admit(ctx); err != nil {
				return err
			}
		}
		_, err := p.circuitBreaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		return err
	})
}

// Retry returns the retry component.
func (p *Policy) Retry() RetryExecutor {
	return p.retry
}

// CircuitBreaker returns the circuit breaker component.
func (p *Policy) CircuitBreaker() CircuitBreakerExecutor {
	return p.circuitBreaker
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (p *Policy) IsCircuitOpen() bool {
	return p.circuitBreaker.IsOpen()
}

// CircuitState returns the current circuit breaker state.
func (p *Policy) CircuitState() State {
	return p.circuitBreaker.State()
}

// SetOnCircuitStateChange sets a callback for circuit state changes.
func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	p.circuitBreaker.SetOnStateChange(fn)
}

// SetOnRetry sets a callback invoked before each 429 backoff.
func (p *Policy) SetOnRetry(fn func(attempt int, delay time.Duration, err error)) {
	p.retry.SetOnRetry(fn)
}
