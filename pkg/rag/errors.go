package rag

import "errors"

// Upstream error classes. Service clients wrap their transport errors with one
// of these so retry policies can classify them.
var (
	// ErrRateLimited marks quota exhaustion signalled by an upstream
	// service. Retried with exponential backoff.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrTransient marks a non-rate-limit network or service failure.
	// Retried a bounded number of times, then surfaced.
	ErrTransient = errors.New("transient upstream failure")
)

// IsRetryable reports whether err belongs to a retryable class.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
