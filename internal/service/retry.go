package service

import (
	"context"
	"fmt"
	"time"

	"age-verification-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds automatic retries of FEED_001 and CONC_001 failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// withRetry runs fn until it succeeds, fails with a non-retryable error,
// or MaxAttempts is exhausted. The backoff doubles after every attempt.
func withRetry[T any](ctx context.Context, policy RetryPolicy, log zerolog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			log.Debug().Err(lastErr).Str("op", op).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying")
			select {
			case <-ctx.Done():
				return zero, apperror.InternalError(fmt.Errorf("%s: %w", op, ctx.Err()))
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !apperror.IsRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	log.Warn().Err(lastErr).Str("op", op).Int("attempts", attempts).Msg("retries exhausted")
	return zero, lastErr
}
