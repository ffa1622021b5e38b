package resilience

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func serverError() error {
	return types.NewUpstreamError("/top/anime", http.StatusBadGateway, nil)
}

func networkError() error {
	return types.NewUpstreamError("/top/anime", 0, errors.New("connection reset by peer"))
}

func TestCircuitBreakerStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("applies defaults for zero values", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{})

		if cb.failureThreshold != 5 {
			t.Errorf("failureThreshold = %v, want 5", cb.failureThreshold)
		}
		if cb.successThreshold != 2 {
			t.Errorf("successThreshold = %v, want 2", cb.successThreshold)
		}
		if cb.openDuration != 30*time.Second {
			t.Errorf("openDuration = %v, want 30s", cb.openDuration)
		}
		if cb.Name() != "upstream" {
			t.Errorf("Name() = %s, want upstream", cb.Name())
		}
		if cb.State() != StateClosed {
			t.Errorf("initial state = %v, want closed", cb.State())
		}
	})
}

func TestCircuitBreakerClassifiesUpstreamErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fault bool
	}{
		{"success", nil, false},
		{"bad gateway", serverError(), true},
		{"network", networkError(), true},
		{"not found", types.NewUpstreamError("/anime/0", http.StatusNotFound, nil), false},
		{"rate limited", types.NewUpstreamError("/anime", http.StatusTooManyRequests, nil), false},
		{"malformed body", types.ErrMalformedResponse, false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1})
			_, _ = cb.Execute(func() (any, error) { return nil, tt.err })

			if got := cb.IsOpen(); got != tt.fault {
				t.Errorf("IsOpen() = %v after %v, want %v", got, tt.err, tt.fault)
			}
		})
	}
}

func TestCircuitBreakerStateTransitions(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		OpenDuration:        30 * time.Second,
		HalfOpenMaxRequests: 2,
	})
	cb.now = clock.Now

	fail := func() (any, error) { return nil, serverError() }
	ok := func() (any, error) { return "ok", nil }

	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", cb.State())
	}

	_, _ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", cb.State())
	}

	if _, err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open error = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Error("Allow() = true before open duration elapsed")
	}

	clock.Advance(time.Second)
	if _, err := cb.Execute(ok); err != nil {
		t.Fatalf("Execute() after open duration error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state after first probe = %v, want half-open", cb.State())
	}

	if _, err := cb.Execute(ok); err != nil {
		t.Fatalf("second probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state after success threshold = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerOpenErrorCarriesCause(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: 10 * time.Second})
	cb.now = clock.Now

	_, _ = cb.Execute(func() (any, error) { return nil, serverError() })
	clock.Advance(4 * time.Second)

	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if !strings.Contains(err.Error(), "6s") || !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q should name the remaining time and the last fault", err)
	}
	if got := cb.Stats().Trips; got != 1 {
		t.Errorf("Trips = %d, want 1", got)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Second})
	cb.now = clock.Now

	cb.RecordFailure()
	clock.Advance(time.Second)

	_, _ = cb.Execute(func() (any, error) { return nil, networkError() })
	if cb.State() != StateOpen {
		t.Errorf("state after failed probe = %v, want open", cb.State())
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenDuration:     10 * time.Second,
	})
	cb.now = clock.Now

	var changes []string
	cb.SetOnStateChange(func(from, to State) {
		// Reading state from the callback must not deadlock.
		_ = cb.Stats()
		changes = append(changes, from.String()+"->"+to.String())
	})

	cb.RecordFailure()
	clock.Advance(10 * time.Second)
	cb.Allow()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, changes[i], want[i])
		}
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Hour})

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("state after reset = %v, want closed", cb.State())
	}
	stats := cb.Stats()
	if stats.ConsecutiveFails != 0 || stats.ConsecutiveSuccs != 0 {
		t.Errorf("counters not reset: fails=%d, succs=%d", stats.ConsecutiveFails, stats.ConsecutiveSuccs)
	}
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1000, OpenDuration: time.Second})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 50 {
				_, _ = cb.Execute(func() (any, error) {
					if (id+j)%2 == 0 {
						return nil, serverError()
					}
					return nil, nil
				})
			}
		}(i)
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed with interleaved successes", cb.State())
	}
}

func TestDisabledCircuitBreaker(t *testing.T) {
	cb := NewDisabledCircuitBreaker()

	for range 10 {
		_, _ = cb.Execute(func() (any, error) { return nil, serverError() })
	}

	if !cb.Allow() || cb.IsOpen() || cb.State() != StateClosed {
		t.Error("disabled breaker should stay closed")
	}
}
