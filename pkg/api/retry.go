package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryConfig controls retries of failed requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the retry settings used by the CLI.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// GetDelay returns the backoff before retry number attempt (zero-based).
func (r *RetryConfig) GetDelay(attempt int) time.Duration {
	delay := r.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether a response with statusCode is worth retrying.
func (r *RetryConfig) ShouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// IsRetryableError reports whether a transport error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
