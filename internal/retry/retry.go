// Package retry runs fallible operations under a bounded exponential
// backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type terminalError struct {
	err error
}

func (t *terminalError) Error() string { return t.err.Error() }
func (t *terminalError) Unwrap() error { return t.err }

// Terminal marks err as non-retryable regardless of the classifier
// passed to Do.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was wrapped by Terminal.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}

// Do invokes fn until it succeeds, returns a terminal error, the
// classifier rejects the error, or the attempt budget is exhausted.
// Delays grow exponentially from policy.BaseDelay up to policy.MaxDelay
// with jitter, and the wait respects ctx cancellation.
func Do(ctx context.Context, policy Policy, isRetryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if IsTerminal(lastErr) {
			return lastErr
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if err := sleep(ctx, backoff(policy, attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("retry: %d attempts exhausted: %w", attempts, lastErr)
}

func backoff(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for i := 1; i < attempt; i++ {
		delay *= 2
		if policy.MaxDelay > 0 && delay >= policy.MaxDelay {
			delay = policy.MaxDelay
			break
		}
	}

	// up to 25% jitter to spread concurrent retries
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
