package catalogfetch

import (
	"github.com/LavishGent/catalogfetch/internal/types"
)

// UpstreamError describes a failed upstream response.
type UpstreamError = types.UpstreamError

var (
	// ErrInvalidEndpoint reports an endpoint that is not a relative path.
	ErrInvalidEndpoint = types.ErrInvalidEndpoint
	// ErrInvalidParams reports a malformed parameter value.
	ErrInvalidParams = types.ErrInvalidParams
	// ErrRateLimited matches any 429 from upstream.
	ErrRateLimited = types.ErrRateLimited
	// ErrRetriesExhausted is returned once every rate-limit retry failed.
	ErrRetriesExhausted = types.ErrRetriesExhausted
	// ErrMalformedResponse reports an upstream body that is not JSON.
	ErrMalformedResponse = types.ErrMalformedResponse
	// ErrCircuitOpen is returned while the upstream breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrQueueFull is returned when the request queue is at capacity.
	ErrQueueFull = types.ErrQueueFull
	// ErrClosed is returned after Close.
	ErrClosed = types.ErrClosed
	// ErrSerializationFailed reports a payload that could not be decoded.
	ErrSerializationFailed = types.ErrSerializationFailed
)

// IsRateLimited reports whether err stems from an upstream 429.
func IsRateLimited(err error) bool {
	return types.IsRateLimited(err)
}

// IsUpstreamError reports whether err carries an upstream response.
func IsUpstreamError(err error) bool {
	return types.IsUpstreamError(err)
}

// AsUpstreamError extracts the upstream error from err's chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	return types.AsUpstreamError(err)
}

// IsCircuitOpen reports whether err was caused by an open breaker.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsRetryable reports whether the access layer would re-attempt a call
// that failed with err.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
