package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrCacheMiss           = errors.New("catalogfetch: key not found")
	ErrRedisUnavailable    = errors.New("catalogfetch: redis unavailable")
	ErrCircuitOpen         = errors.New("catalogfetch: circuit breaker open")
	ErrClosed              = errors.New("catalogfetch: client closed")
	ErrQueueFull           = errors.New("catalogfetch: request queue full")
	ErrRateLimited         = errors.New("catalogfetch: upstream rate limited")
	ErrRetriesExhausted    = errors.New("catalogfetch: rate-limit retries exhausted")
	ErrMalformedResponse   = errors.New("catalogfetch: malformed upstream response")
	ErrSerializationFailed = errors.New("catalogfetch: serialization failed")
	ErrInvalidEndpoint     = errors.New("catalogfetch: invalid endpoint")
	ErrInvalidParams       = errors.New("catalogfetch: invalid parameters")
	ErrShutdownTimeout     = errors.New("catalogfetch: shutdown timeout waiting for queued jobs")
)

// CacheError describes a failed store operation. It never reaches callers of
// Fetch; the cache absorbs it and treats the lookup as a miss.
type CacheError struct {
	Op    string
	Key   string
	Layer string
	Err   error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

// UpstreamError is a failed call to the upstream API. Status is zero for
// network failures.
type UpstreamError struct {
	Endpoint   string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("upstream GET %s: %v", e.Endpoint, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("upstream GET %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	default:
		return fmt.Sprintf("upstream GET %s: status %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes a 429 UpstreamError match ErrRateLimited.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

func NewUpstreamError(endpoint string, status int, err error) *UpstreamError {
	return &UpstreamError{
		Endpoint: endpoint,
		Status:   status,
		Err:      err,
	}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsRedisUnavailable(err error) bool {
	return errors.Is(err, ErrRedisUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsUpstreamError(err error) bool {
	_, ok := AsUpstreamError(err)
	return ok
}

// AsUpstreamError extracts the UpstreamError carried by err, if any.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsRetryable reports whether the access layer re-attempts a call that
// failed with err. Only upstream rate limiting is retried; every other
// upstream failure is surfaced to the caller as is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRetriesExhausted) {
		return false
	}

	return IsRateLimited(err)
}
