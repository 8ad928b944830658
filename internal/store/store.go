// Package store holds the reconciled, queryable mirror of backend session
// state. A single consumption loop feeds it through ApplyEvent; reads from
// the UI layer may happen concurrently and are served from copies.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/pkg/models"
)

// Ring buffer caps for advisory signals and the audit trail.
const (
	fileChangeCap = 32
	branchCap     = 8
	auditCap      = 256
)

// Saver persists the durable subset. Save is invoked on every durable
// mutation with a snapshot the store no longer touches.
type Saver interface {
	Save(state models.DurableState) error
}

// AuditEntry records one received event for debugging. Unknown events land
// here too, so drift in the backend's event vocabulary stays visible.
type AuditEntry struct {
	Type      events.Type
	SessionID string
	At        time.Time
}

// Handler receives every event after it has been applied.
type Handler func(events.Event)

type subscriber struct {
	sessionID string // empty = all sessions
	fn        Handler
}

// Store is the reconciliation store. All session-scoped collections are
// lazily initialized on first use, so events referencing a session the
// store has never seen are fine.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger
	saver  Saver

	// Transient, rebuilt from the backend after every reconnect.
	messages    map[string][]models.Message        // session id -> sorted by CreatedAt
	parts       map[string][]models.Part           // message id -> sorted by id
	statuses    map[string]models.SessionStatus    // session id -> last status
	errors      map[string]models.SessionError     // session id -> last structured error
	diffs       map[string]models.SessionDiff      // session id -> latest diff snapshot
	reverts     map[string]models.RevertState      // session id -> revert boundary
	permissions map[string][]models.PendingRequest // session id -> pending, sorted by id
	questions   map[string][]models.PendingRequest
	health      models.Health
	fileChanges []models.FileChange
	branches    []models.BranchUpdate
	audit       []AuditEntry

	// Durable, survives restarts and resync.
	durable models.DurableState

	subscribers map[int]subscriber
	nextSubID   int

	metrics *Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSaver sets the durable-subset persister.
func WithSaver(saver Saver) Option {
	return func(s *Store) { s.saver = saver }
}

// WithDurable seeds the durable subset, typically from the persistence
// boundary at startup before any event processing begins.
func WithDurable(state models.DurableState) Option {
	return func(s *Store) { s.durable = state.Clone() }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger:      slog.Default(),
		subscribers: map[int]subscriber{},
		metrics:     NewMetrics(),
	}
	s.initTransient()
	for _, opt := range opts {
		opt(s)
	}
	if s.durable.Layouts == nil {
		s.durable.Layouts = map[string]map[string]models.Position{}
	}
	if s.durable.ProducedFiles == nil {
		s.durable.ProducedFiles = map[string]bool{}
	}
	return s
}

func (s *Store) initTransient() {
	s.messages = map[string][]models.Message{}
	s.parts = map[string][]models.Part{}
	s.statuses = map[string]models.SessionStatus{}
	s.errors = map[string]models.SessionError{}
	s.diffs = map[string]models.SessionDiff{}
	s.reverts = map[string]models.RevertState{}
	s.permissions = map[string][]models.PendingRequest{}
	s.questions = map[string][]models.PendingRequest{}
	s.health = models.Health{}
	s.fileChanges = nil
	s.branches = nil
	s.audit = nil
}

// ResetRealtimeState discards every transient collection while leaving the
// durable subset untouched. The stream manager calls this before resuming
// event processing after a reconnect: the backend does not replay history,
// so pre-disconnect state must not coexist with fresh state.
func (s *Store) ResetRealtimeState() {
	s.mu.Lock()
	s.initTransient()
	s.mu.Unlock()
	s.metrics.RecordReset()
	s.logger.Info("realtime state reset")
}

// Subscribe registers a handler for all events. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn Handler) func() {
	return s.subscribe("", fn)
}

// SubscribeSession registers a handler for events scoped to one session.
func (s *Store) SubscribeSession(sessionID string, fn Handler) func() {
	return s.subscribe(sessionID, fn)
}

func (s *Store) subscribe(sessionID string, fn Handler) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = subscriber{sessionID: sessionID, fn: fn}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// dispatch invokes subscribers synchronously in the caller's goroutine.
// A panicking handler is recovered and logged, never propagated.
func (s *Store) dispatch(ev events.Event) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if sub.sessionID == "" || sub.sessionID == ev.SessionID {
			handlers = append(handlers, sub.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("event handler panicked", "type", ev.Type, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}

func (s *Store) recordAudit(ev events.Event) {
	s.audit = appendRing(s.audit, AuditEntry{Type: ev.Type, SessionID: ev.SessionID, At: time.Now()}, auditCap)
}

// appendRing appends to a bounded slice, evicting the oldest entries.
func appendRing[T any](ring []T, item T, limit int) []T {
	ring = append(ring, item)
	if len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	return ring
}
