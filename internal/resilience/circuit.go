// Package resilience provides the fault tolerance patterns applied to
// upstream calls: rate-limit retries and an optional circuit breaker.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after a run of upstream faults (see IsUpstreamFault)
// and rejects attempts until openDuration has passed. It then lets a few
// probe attempts through; successThreshold good probes close it again and
// any faulty probe reopens it.
type CircuitBreaker struct {
	name      string
	isFailure func(error) bool
	now       func() time.Time

	failureThreshold    int
	successThreshold    int
	openDuration        time.Duration
	halfOpenMaxRequests int

	mu        sync.Mutex
	state     State
	fails     int
	succs     int
	probes    int
	openedAt  time.Time
	trips     int64
	lastFault error
	onChange  func(from, to State)
}

// NewCircuitBreaker builds a closed breaker for the upstream API. Zero
// config fields fall back to 5 faults, 2 probe successes, 30s open and 3
// concurrent probes.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:                "upstream",
		isFailure:           IsUpstreamFault,
		now:                 time.Now,
		failureThreshold:    positiveOr(cfg.FailureThreshold, 5),
		successThreshold:    positiveOr(cfg.SuccessThreshold, 2),
		openDuration:        durationOr(cfg.OpenDuration, 30*time.Second),
		halfOpenMaxRequests: positiveOr(cfg.HalfOpenMaxRequests, 3),
	}
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the breaker rejects the attempt, in which case the
// error wraps ErrCircuitOpen together with the fault that tripped it.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	if !cb.Allow() {
		return nil, cb.openError()
	}

	result, err := fn()
	if cb.isFailure(err) {
		cb.recordFault(err)
	} else {
		cb.RecordSuccess()
	}
	return result, err
}

func (cb *CircuitBreaker) openError() error {
	cb.mu.Lock()
	cause, left := cb.lastFault, cb.openDuration-cb.now().Sub(cb.openedAt)
	cb.mu.Unlock()

	if cause == nil {
		return ErrCircuitOpen
	}
	return fmt.Errorf("%w for another %s, last fault: %v", ErrCircuitOpen, left.Round(time.Millisecond), cause)
}

// Allow reports whether an attempt may reach the upstream now. In the
// half-open state each true result reserves one probe slot.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	notify := noNotify
	allowed := true

	switch cb.state {
	case StateOpen:
		allowed = cb.now().Sub(cb.openedAt) >= cb.openDuration
		if allowed {
			notify = cb.setState(StateHalfOpen)
			cb.probes = 1
		}
	case StateHalfOpen:
		allowed = cb.probes < cb.halfOpenMaxRequests
		if allowed {
			cb.probes++
		}
	}
	cb.mu.Unlock()

	notify()
	return allowed
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	notify := noNotify
	switch cb.state {
	case StateClosed:
		cb.fails = 0
	case StateHalfOpen:
		cb.succs++
		if cb.succs >= cb.successThreshold {
			notify = cb.setState(StateClosed)
		}
	}
	cb.mu.Unlock()

	notify()
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.recordFault(nil)
}

func (cb *CircuitBreaker) recordFault(err error) {
	cb.mu.Lock()
	notify := noNotify
	if err != nil {
		cb.lastFault = err
	}
	switch cb.state {
	case StateClosed:
		cb.fails++
		if cb.fails >= cb.failureThreshold {
			notify = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		notify = cb.setState(StateOpen)
	}
	cb.mu.Unlock()

	notify()
}

func noNotify() {}

// setState moves to next with cb.mu held. The returned func fires the
// change callback and must be called after unlocking, so callbacks may
// read the breaker.
func (cb *CircuitBreaker) setState(next State) func() {
	prev := cb.state
	if prev == next {
		return noNotify
	}

	cb.state = next
	cb.succs = 0
	switch next {
	case StateClosed:
		cb.fails = 0
		cb.probes = 0
		cb.lastFault = nil
	case StateOpen:
		cb.openedAt = cb.now()
		cb.trips++
	case StateHalfOpen:
		cb.probes = 0
	}

	fn := cb.onChange
	if fn == nil {
		return noNotify
	}
	return func() { fn(prev, next) }
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange registers fn to run after every transition. fn runs on
// the goroutine that caused the transition and should return quickly.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Reset closes the breaker without notifying.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.fails, cb.succs, cb.probes = 0, 0, 0
	cb.lastFault = nil
}

// CircuitBreakerStats is a snapshot of breaker internals.
type CircuitBreakerStats struct {
	OpenedAt         time.Time
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
	Trips            int64
}

func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		OpenedAt:         cb.openedAt,
		State:            cb.state,
		ConsecutiveFails: cb.fails,
		ConsecutiveSuccs: cb.succs,
		HalfOpenRequests: cb.probes,
		Trips:            cb.trips,
	}
}

// passThrough is used when the breaker is switched off in config.
type passThrough struct{}

func NewDisabledCircuitBreaker() CircuitBreakerExecutor {
	return passThrough{}
}

func (passThrough) Execute(fn func() (any, error)) (any, error) { return fn() }
func (passThrough) Allow() bool                                  { return true }
func (passThrough) RecordSuccess()                               {}
func (passThrough) RecordFailure()                               {}
func (passThrough) State() State                                 { return StateClosed }
func (passThrough) IsOpen() bool                                 { return false }
func (passThrough) SetOnStateChange(func(from, to State))        {}
