// Package resilience provides the error taxonomy, retry and circuit
// breaker primitives used around external provider and tool calls.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ProviderError wraps a failure from a generative provider or lookup
// tool with its HTTP status code, when one exists. Rate-limit-class
// errors (429) are the only class retried in place; everything else
// fails fast to the next fallback step.
type ProviderError struct {
	Provider   string
	Err        error
	StatusCode int
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with its originating provider and status code.
func NewProviderError(provider string, err error, statusCode int) *ProviderError {
	return &ProviderError{Provider: provider, Err: err, StatusCode: statusCode}
}

// IsRateLimited reports whether the error chain contains a 429-class
// provider error. Only these are retried in place with backoff.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// IsTimeout reports whether the error chain indicates a deadline or
// network timeout. Timed-out calls advance the fallback chain; they are
// never retried in place.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "i/o timeout")
}
