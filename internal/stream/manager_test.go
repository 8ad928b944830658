package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dilaghq/mirror/internal/backoff"
	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	applied []events.Event
	resets  int
	notify  chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{notify: make(chan struct{}, 64)}
}

func (f *fakeStore) ApplyEvent(ev events.Event) {
	f.mu.Lock()
	f.applied = append(f.applied, ev)
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *fakeStore) ResetRealtimeState() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeStore) counts() (applied, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied), f.resets
}

func (f *fakeStore) waitForEvents(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if applied, _ := f.counts(); applied >= n {
			return
		}
		select {
		case <-f.notify:
		case <-deadline:
			applied, _ := f.counts()
			t.Fatalf("timed out waiting for %d events, saw %d", n, applied)
		}
	}
}

func fastPolicy() backoff.Policy {
	return backoff.Policy{Base: time.Millisecond, Max: time.Millisecond, Factor: 1}
}

func TestRunResyncsOnReconnectButNotFirstConnection(t *testing.T) {
	var mu sync.Mutex
	connections := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"type\":\"session.idle\",\"properties\":{\"sessionId\":\"ses_%d\"}}\n\n", n)
		// Closing the handler closes the stream: a clean hangup the
		// client must treat as a reconnect trigger.
	}))
	defer server.Close()

	store := newFakeStore()
	manager := New(Config{URL: server.URL, Policy: fastPolicy()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	store.waitForEvents(t, 2)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	_, resets := store.counts()
	mu.Lock()
	conns := connections
	mu.Unlock()
	if conns < 2 {
		t.Fatalf("expected a reconnect, saw %d connections", conns)
	}
	// Resync runs on every connection except the very first.
	if resets < 1 || resets > conns-1 {
		t.Fatalf("resets = %d with %d connections", resets, conns)
	}
	// And never before the first connection's events.
	store.mu.Lock()
	first := store.applied[0]
	store.mu.Unlock()
	if first.SessionID != "ses_1" {
		t.Fatalf("first applied event from session %q, want ses_1", first.SessionID)
	}
}

func TestDisposedEventTriggersResyncWithoutDrop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"server.disposed\",\"properties\":{\"sessionId\":\"ses_1\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"session.idle\",\"properties\":{\"sessionId\":\"ses_1\"}}\n\n")
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	store := newFakeStore()
	manager := New(Config{URL: server.URL, Policy: fastPolicy()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	store.waitForEvents(t, 2)
	_, resets := store.counts()
	if resets != 1 {
		t.Fatalf("resets = %d, want 1 (disposal without a connection drop)", resets)
	}
	cancel()
	<-done
}

func TestSuccessfulConnectionResetsFailureCount(t *testing.T) {
	var mu sync.Mutex
	connections := 0

	// Two hard failures, then every attempt succeeds and closes cleanly.
	// With the cap at 3, only a stale consecutive-failure count could
	// terminate the loop after the success.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"type\":\"session.idle\",\"properties\":{\"sessionId\":\"ses_%d\"}}\n\n", n)
	}))
	defer server.Close()

	store := newFakeStore()
	// A huge factor makes any stale attempt number stall the loop for
	// minutes; post-success drops must wait only the base delay.
	manager := New(Config{
		URL:         server.URL,
		Policy:      backoff.Policy{Base: time.Millisecond, Max: time.Minute, Factor: 1000},
		MaxAttempts: 3,
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	store.waitForEvents(t, 3)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil after cancellation", err)
	}

	mu.Lock()
	conns := connections
	mu.Unlock()
	if conns < 5 {
		t.Fatalf("saw %d connections, want at least 5 (reconnects past the cap)", conns)
	}
}

func TestResyncHookRunsAfterStoreReset(t *testing.T) {
	var mu sync.Mutex
	connections := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"type\":\"session.idle\",\"properties\":{\"sessionId\":\"ses_%d\"}}\n\n", n)
	}))
	defer server.Close()

	store := newFakeStore()
	var hookMu sync.Mutex
	var resetsAtHook []int
	cfg := Config{URL: server.URL, Policy: fastPolicy()}
	cfg.OnResync = func() {
		_, resets := store.counts()
		hookMu.Lock()
		resetsAtHook = append(resetsAtHook, resets)
		hookMu.Unlock()
	}
	manager := New(cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	store.waitForEvents(t, 2)
	cancel()
	<-done

	_, resets := store.counts()
	hookMu.Lock()
	defer hookMu.Unlock()
	if len(resetsAtHook) != resets {
		t.Fatalf("hook ran %d times for %d resets", len(resetsAtHook), resets)
	}
	if len(resetsAtHook) == 0 {
		t.Fatal("hook never ran despite a reconnect")
	}
	// The hook must observe the reset already applied.
	for i, seen := range resetsAtHook {
		if seen != i+1 {
			t.Fatalf("hook call %d observed %d resets, want %d", i, seen, i+1)
		}
	}
}

func TestResyncHookRunsOnDisposedEvent(t *testing.T) {
	store := newFakeStore()
	hooked := 0
	manager := New(Config{
		URL:      "http://127.0.0.1:1",
		OnResync: func() { hooked++ },
	}, store)

	manager.handleData(`{"type":"server.disposed","properties":{"sessionId":"ses_1"}}`)
	_, resets := store.counts()
	if resets != 1 {
		t.Fatalf("resets = %d, want 1", resets)
	}
	if hooked != 1 {
		t.Fatalf("hook ran %d times, want 1", hooked)
	}
}

func TestRunReturnsAfterMaxAttempts(t *testing.T) {
	// A server that immediately rejects every attempt.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newFakeStore()
	manager := New(Config{URL: server.URL, Policy: fastPolicy(), MaxAttempts: 3}, store)

	err := manager.Run(context.Background())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Run() error = %v, want ErrAttemptsExhausted", err)
	}
	if phase := manager.State().Phase; phase != models.PhaseDisconnected {
		t.Fatalf("phase = %q, want disconnected", phase)
	}
}

func TestCancellationAbortsBackoffWait(t *testing.T) {
	store := newFakeStore()
	manager := New(Config{
		URL:    "http://127.0.0.1:1", // nothing listens here
		Policy: backoff.Policy{Base: time.Minute, Max: time.Minute, Factor: 1},
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	time.Sleep(50 * time.Millisecond) // let it fail into the backoff wait
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not abort the backoff wait on cancellation")
	}
	if phase := manager.State().Phase; phase != models.PhaseDisconnected {
		t.Fatalf("phase = %q, want disconnected", phase)
	}
}

func TestServerSuggestedRetryOverridesBackoff(t *testing.T) {
	store := newFakeStore()
	manager := New(Config{URL: "http://127.0.0.1:1", Policy: backoff.Reconnect()}, store)

	manager.handleRetry("250")
	if got := manager.nextDelay(5); got != 250*time.Millisecond {
		t.Fatalf("nextDelay = %v, want 250ms", got)
	}
	if got := manager.State().SuggestedRetry; got != 250*time.Millisecond {
		t.Fatalf("SuggestedRetry = %v, want 250ms", got)
	}

	// Garbage retry values are ignored.
	manager.handleRetry("not-a-number")
	if got := manager.nextDelay(1); got != 250*time.Millisecond {
		t.Fatalf("nextDelay = %v after bad retry value", got)
	}
}

func TestAttemptCounterResetsOnSuccessfulConnection(t *testing.T) {
	store := newFakeStore()
	manager := New(Config{URL: "http://127.0.0.1:1"}, store)

	manager.beginAttempt()
	manager.beginAttempt()
	if got := manager.State().Attempt; got != 2 {
		t.Fatalf("attempt = %d, want 2", got)
	}

	manager.onConnected()
	state := manager.State()
	if state.Attempt != 0 {
		t.Fatalf("attempt = %d after connect, want 0", state.Attempt)
	}
	if state.Phase != models.PhaseConnected {
		t.Fatalf("phase = %q, want connected", state.Phase)
	}
	// First connection of the process lifetime must not reset the store.
	if _, resets := store.counts(); resets != 0 {
		t.Fatalf("resets = %d on first connection, want 0", resets)
	}
}
