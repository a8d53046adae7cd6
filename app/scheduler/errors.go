package scheduler

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStopped is returned for requests still pending when the scheduler shuts
// down.
var ErrStopped = errors.New("scheduler stopped")

// RequestError classifies a failed request by its HTTP status so the
// scheduler can decide between cooldown, retry, and immediate failure.
type RequestError struct {
	Status     int
	RetryAfter time.Duration // from a Retry-After header, zero when absent
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the failure is a rate-limit signal. These are
// never surfaced to the caller directly; the scheduler absorbs them as a
// dispatch cooldown.
func (e *RequestError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Unauthorized reports whether the failure is a credential problem the
// caller has to resolve.
func (e *RequestError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Retryable reports whether the scheduler may retry the request.
// Authorization failures and malformed requests are terminal.
func (e *RequestError) Retryable() bool {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return true
}
