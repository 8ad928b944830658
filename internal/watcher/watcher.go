// Package watcher observes session screens/ directories and forwards
// file activity into the reconciliation store as advisory events. The
// first write observed for a session also flips its durable
// produced-files flag so the layout can surface outputs across restarts.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/pkg/models"
)

// Sink is the slice of the store the watcher feeds.
type Sink interface {
	ApplyEvent(ev events.Event)
	SetProducedFiles(sessionID string, produced bool)
	ProducedFiles(sessionID string) bool
}

// Watcher debounces fsnotify activity per path and republishes it as
// file.watcher.updated events.
type Watcher struct {
	sink     Sink
	logger   *slog.Logger
	debounce time.Duration

	fs *fsnotify.Watcher

	mu       sync.Mutex
	sessions map[string]string // watched dir -> session id
	pending  map[string]*time.Timer
}

// Config configures a Watcher.
type Config struct {
	Sink Sink

	// Debounce collapses bursts of writes to the same path. Zero means
	// publish immediately.
	Debounce time.Duration

	Logger *slog.Logger
}

// New creates a Watcher. Call Run to start delivering events and Watch
// to register session directories.
func New(cfg Config) (*Watcher, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("watcher sink required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		sink:     cfg.Sink,
		logger:   cfg.Logger.With("component", "watcher"),
		debounce: cfg.Debounce,
		fs:       fs,
		sessions: make(map[string]string),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Watch registers a session's directory. Events under dir are attributed
// to sessionID.
func (w *Watcher) Watch(sessionID, dir string) error {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	w.sessions[dir] = sessionID
	w.mu.Unlock()
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching", "session", sessionID, "dir", dir)
	return nil
}

// Unwatch stops observing a session's directory.
func (w *Watcher) Unwatch(dir string) error {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	delete(w.sessions, dir)
	w.mu.Unlock()
	if err := w.fs.Remove(dir); err != nil {
		return fmt.Errorf("unwatch %s: %w", dir, err)
	}
	return nil
}

// Run delivers events until ctx is cancelled, then closes the underlying
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			w.flushPending()
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op := classifyOp(ev.Op)
	if op == "" {
		return
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}

	sessionID := w.sessionFor(ev.Name)
	if w.debounce <= 0 {
		w.publish(sessionID, ev.Name, op)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[ev.Name]; ok {
		timer.Stop()
	}
	path := ev.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.publish(sessionID, path, op)
	})
}

func (w *Watcher) publish(sessionID, path string, op models.FileChangeOp) {
	change := &models.FileChange{
		SessionID: sessionID,
		Path:      path,
		Op:        op,
		At:        time.Now(),
	}
	w.sink.ApplyEvent(events.Event{
		Type:       events.TypeFileWatcher,
		SessionID:  sessionID,
		FileChange: change,
	})
	if sessionID != "" && op != models.FileRemoved && isRendered(path) && !w.sink.ProducedFiles(sessionID) {
		w.sink.SetProducedFiles(sessionID, true)
	}
}

// flushPending fires every debounced event immediately on shutdown.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	timers := make([]*time.Timer, 0, len(w.pending))
	for _, t := range w.pending {
		timers = append(timers, t)
	}
	w.mu.Unlock()
	for _, t := range timers {
		if t.Stop() {
			t.Reset(0)
		}
	}
}

// sessionFor maps an event path back to the session owning its directory.
func (w *Watcher) sessionFor(path string) string {
	dir := filepath.Dir(filepath.Clean(path))
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if id, ok := w.sessions[dir]; ok {
			return id
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isRendered reports whether a path looks like backend-rendered output.
func isRendered(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func classifyOp(op fsnotify.Op) models.FileChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return models.FileCreated
	case op.Has(fsnotify.Write):
		return models.FileWritten
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return models.FileRemoved
	default:
		return ""
	}
}
