// Package retry provides a reusable retry policy for upstream service calls.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how a failing operation is retried. The zero value is not
// usable; construct one with DefaultPolicy or fill every field explicitly.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Multiplier  float64       `json:"multiplier"`

	// Retryable classifies errors; a nil function retries nothing.
	Retryable func(error) bool `json:"-"`
}

// DefaultPolicy returns the policy used for embedding and generation calls:
// three attempts with exponential backoff starting at 500ms.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Retryable:   retryable,
	}
}

// Do executes fn until it succeeds, exhausts MaxAttempts, hits a non-retryable
// error, or the context is cancelled. The delay between attempt n and n+1 is
// BaseDelay * Multiplier^n, capped at MaxDelay.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}
