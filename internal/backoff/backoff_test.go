package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReconnectDelaySchedule(t *testing.T) {
	policy := Reconnect()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		16 * time.Second, // clamped, not 32
	}
	for i, expected := range want {
		got := policy.DelayWithRand(i+1, 0)
		if got != expected {
			t.Fatalf("Delay(attempt=%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestDelayNonDecreasingUpToCeiling(t *testing.T) {
	policy := Reconnect()
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := policy.DelayWithRand(attempt, 0)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > policy.Max {
			t.Fatalf("delay exceeded ceiling at attempt %d: %v", attempt, d)
		}
		prev = d
	}
}

func TestDelayJitterStaysWithinBounds(t *testing.T) {
	policy := Policy{Base: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.5}
	base := policy.DelayWithRand(3, 0)
	jittered := policy.DelayWithRand(3, 0.999)
	if jittered < base {
		t.Fatalf("jitter reduced the delay: %v < %v", jittered, base)
	}
	if limit := base + base/2; jittered > limit {
		t.Fatalf("jitter exceeded bound: %v > %v", jittered, limit)
	}
}

func TestDelayZeroAttemptClampsToBase(t *testing.T) {
	policy := Reconnect()
	if got := policy.DelayWithRand(0, 0); got != policy.Base {
		t.Fatalf("Delay(0) = %v, want base %v", got, policy.Base)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Sleep(ctx, time.Minute)
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Sleep() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep did not abort on cancellation")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := Policy{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}
	calls := 0
	value, err := Retry(context.Background(), policy, 5, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if value != "ok" || calls != 3 {
		t.Fatalf("value = %q after %d calls", value, calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := Policy{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}
	boom := errors.New("boom")
	_, err := Retry(context.Background(), policy, 2, func(int) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, ErrAttemptsExhausted) || !errors.Is(err, boom) {
		t.Fatalf("Retry() error = %v, want exhausted wrapping boom", err)
	}
}
