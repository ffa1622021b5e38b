package resilience

import (
	"errors"
	"net/http"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// Re-export errors from types package for convenience within the resilience package.
var (
	ErrCircuitOpen      = types.ErrCircuitOpen
	ErrRetriesExhausted = types.ErrRetriesExhausted
)

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsRetryable reports whether err is an upstream rate limit worth waiting
// out. Everything else, including network failures and 5xx responses, is
// surfaced to the caller untouched.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}

// IsUpstreamFault reports whether err says the upstream itself is unhealthy:
// network failures and 5xx responses. Client errors, rate limits, malformed
// bodies and context cancellations do not count.
func IsUpstreamFault(err error) bool {
	if err == nil {
		return false
	}
	ue, ok := types.AsUpstreamError(err)
	if !ok {
		return false
	}
	return ue.Status == 0 || ue.Status >= http.StatusInternalServerError
}
