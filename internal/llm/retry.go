package llm

import (
	"context"
	"time"
)

// RetryPolicy defines how a fallible network call is retried. The
// backoff is linear: attempt × BackoffStep between attempts.
type RetryPolicy struct {
	MaxAttempts int           `json:"maxAttempts"`
	BackoffStep time.Duration `json:"backoffStep"`
}

// DefaultRetryPolicy matches the adapters' contract: 3 attempts total
// with a linear backoff of attempt × 1 second between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffStep: 1 * time.Second,
	}
}

// Delay returns the wait before the next attempt, where attempt counts
// from 1 for the first completed (failed) attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.BackoffStep
}

// RetryableOperation is one attempt of a fallible call.
type RetryableOperation[T any] func(ctx context.Context) (T, error)

// Retry executes op up to policy.MaxAttempts times, sleeping
// policy.Delay(attempt) between attempts. Any failure is retried; the
// last attempt's error is surfaced when all attempts are exhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, op RetryableOperation[T]) (T, error) {
	var result T
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, lastErr = op(ctx)
		if lastErr == nil {
			return result, nil
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(policy.Delay(attempt)):
		}
	}

	return result, lastErr
}
