// Package stream owns the long-lived event stream connection to the
// backend: connect, consume, classify, forward to the store, and reconnect
// with bounded exponential backoff. Exactly one consumption loop runs per
// manager; nothing else mutates the store.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dilaghq/mirror/internal/backoff"
	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/pkg/models"
)

// maxEventSize bounds a single SSE line; large tool outputs arrive as
// parts well under this.
const maxEventSize = 1 << 20

// ErrAttemptsExhausted is returned by Run when the configured attempt cap
// is exceeded. With the default unlimited cap it is never returned.
var ErrAttemptsExhausted = errors.New("connection attempts exhausted")

// Store is the subset of the reconciliation store the manager drives.
type Store interface {
	ApplyEvent(ev events.Event)
	ResetRealtimeState()
}

// Config configures a Manager.
type Config struct {
	// URL is the event stream endpoint.
	URL string

	// Policy computes reconnect delays. Zero value means backoff.Reconnect().
	Policy backoff.Policy

	// MaxAttempts caps consecutive failed connection attempts.
	// 0 means unlimited.
	MaxAttempts int

	// Client is the HTTP client for the stream. A client without a global
	// timeout is required: an open, healthy stream is held indefinitely.
	Client *http.Client

	// OnResync is invoked after every transient-state reset, once the
	// store is empty again. Callers wire it to a control-surface snapshot
	// fetch so the mirror repopulates without waiting for new events.
	OnResync func()

	Logger *slog.Logger
}

// Manager maintains the stream connection lifecycle.
type Manager struct {
	cfg     Config
	store   Store
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics

	mu             sync.RWMutex
	state          models.ConnectionState
	everConnected  bool
	suggestedRetry time.Duration
}

// New creates a Manager. Run must be called to start consuming.
func New(cfg Config, store Store) *Manager {
	if cfg.Policy == (backoff.Policy{}) {
		cfg.Policy = backoff.Reconnect()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		client:  cfg.Client,
		logger:  cfg.Logger.With("component", "stream"),
		metrics: NewMetrics(),
		state:   models.ConnectionState{Phase: models.PhaseDisconnected},
	}
}

// State returns the current connection state for UI-level display.
func (m *Manager) State() models.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run connects and consumes events until ctx is cancelled or the attempt
// cap is exceeded. A clean stream close is treated the same as a failure:
// the backend hangs up periodically and the client resumes seamlessly.
func (m *Manager) Run(ctx context.Context) error {
	for {
		attempt := m.beginAttempt()

		connected, err := m.connectOnce(ctx)
		if ctx.Err() != nil {
			m.setPhase(models.PhaseDisconnected)
			return nil
		}
		if connected {
			// The success reset the consecutive-failure count; the drop
			// that ended this connection starts a fresh one.
			attempt = m.restartAttempts()
		}
		m.metrics.RecordFailure()
		if err != nil {
			m.logger.Warn("event stream ended", "error", err, "attempt", attempt)
		} else {
			m.logger.Info("event stream closed by backend", "attempt", attempt)
		}

		m.setPhase(models.PhaseReconnecting)
		if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
			m.setPhase(models.PhaseDisconnected)
			return ErrAttemptsExhausted
		}

		if err := backoff.Sleep(ctx, m.nextDelay(attempt)); err != nil {
			m.setPhase(models.PhaseDisconnected)
			return nil
		}
	}
}

// beginAttempt bumps the attempt counter and moves to the connecting
// phase (reconnecting when a connection has succeeded before).
func (m *Manager) beginAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Attempt++
	if m.everConnected {
		m.state.Phase = models.PhaseReconnecting
	} else {
		m.state.Phase = models.PhaseConnecting
	}
	return m.state.Attempt
}

// restartAttempts counts the failure that ended a successful connection
// as the first of a fresh run, for both the cap check and the delay.
func (m *Manager) restartAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Attempt = 1
	return m.state.Attempt
}

// nextDelay prefers a server-suggested retry interval over the computed
// backoff.
func (m *Manager) nextDelay(attempt int) time.Duration {
	m.mu.RLock()
	suggested := m.suggestedRetry
	m.mu.RUnlock()
	if suggested > 0 {
		return suggested
	}
	return m.cfg.Policy.Delay(attempt)
}

func (m *Manager) setPhase(phase models.ConnectionPhase) {
	m.mu.Lock()
	m.state.Phase = phase
	m.mu.Unlock()
}

// connectOnce opens the stream and consumes it until it ends. The bool
// reports whether a connection was established; a (true, nil) return means
// the backend closed an open stream cleanly.
func (m *Manager) connectOnce(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return false, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	m.onConnected()
	return true, m.consume(resp.Body)
}

// onConnected resets the attempt counter and, for every connection after
// the first of the process lifetime, resets the store's transient state:
// the backend does not replay history, so cached state from before the
// drop must not coexist with fresh events.
func (m *Manager) onConnected() {
	m.mu.Lock()
	m.state.Phase = models.PhaseConnected
	m.state.Attempt = 0
	m.state.LastConnectedAt = time.Now()
	needsResync := m.everConnected
	m.everConnected = true
	m.mu.Unlock()

	m.metrics.RecordConnect()
	if needsResync {
		m.resync()
	}
	m.logger.Info("event stream connected", "url", m.cfg.URL, "resync", needsResync)
}

// resync wipes the store's transient state and triggers the snapshot
// refetch, in that order, so the snapshot lands in an empty store before
// stream events resume.
func (m *Manager) resync() {
	m.store.ResetRealtimeState()
	if m.cfg.OnResync != nil {
		m.cfg.OnResync()
	}
}

func (m *Manager) consume(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			m.handleData(strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, "retry: "):
			m.handleRetry(strings.TrimPrefix(line, "retry: "))
		}
	}
	return scanner.Err()
}

func (m *Manager) handleData(data string) {
	var env events.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		m.logger.Debug("undecodable stream payload", "error", err)
		return
	}

	ev := events.Classify(env)
	if ev.Type == events.TypeUnknown {
		m.logger.Debug("unknown event", "raw_type", env.Type, "session_id", ev.SessionID)
	}

	// The backend discarded its server-side session state; the cached
	// mirror is stale even though the connection never dropped.
	if ev.Type == events.TypeDisposed {
		m.resync()
	}

	m.store.ApplyEvent(ev)
	m.metrics.RecordEvent()
}

// handleRetry records a server-suggested retry interval (milliseconds, per
// the SSE retry field).
func (m *Manager) handleRetry(value string) {
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || ms < 0 {
		return
	}
	m.mu.Lock()
	m.suggestedRetry = time.Duration(ms) * time.Millisecond
	m.state.SuggestedRetry = m.suggestedRetry
	m.mu.Unlock()
}
