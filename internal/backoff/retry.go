package backoff

import (
	"context"
	"errors"
)

// ErrAttemptsExhausted is returned when all retry attempts have failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Retry executes fn with backoff between failures, up to maxAttempts
// times. fn receives the 1-indexed attempt number. Context cancellation is
// checked before every attempt and aborts the wait between attempts.
func Retry[T any](ctx context.Context, policy Policy, maxAttempts int, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return zero, err
			}
		}
	}

	if lastErr != nil {
		return zero, errors.Join(ErrAttemptsExhausted, lastErr)
	}
	return zero, ErrAttemptsExhausted
}
