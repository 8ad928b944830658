package backoff

import (
	"context"
	"time"
)

// Sleep waits for the given duration, honoring context cancellation.
// Returns nil when the wait completed, or ctx.Err() when it was aborted.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
