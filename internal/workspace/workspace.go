// Package workspace manages per-session working directories and the
// metadata catalog that tracks them. Each session gets its own directory
// under the workspace root with a screens/ subdirectory where the backend
// writes rendered output; the catalog lives in sessions.json at the root.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dilaghq/mirror/internal/ordered"
)

// catalogFile is the name of the metadata catalog at the workspace root.
const catalogFile = "sessions.json"

// screensDir is the per-session subdirectory the backend renders into.
const screensDir = "screens"

// SessionRecord is one catalog entry.
type SessionRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Directory string    `json:"directory"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager owns the workspace root and its catalog. All methods are safe
// for concurrent use; the catalog is flushed to disk on every mutation.
type Manager struct {
	root string

	mu      sync.Mutex
	records []SessionRecord
}

// Open loads (or creates) the workspace at root.
func Open(root string) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace root: %w", err)
		}
		root = filepath.Join(home, ".mirror", "sessions")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	m := &Manager{root: root}
	if err := m.loadCatalog(); err != nil {
		return nil, err
	}
	return m, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// SessionDir returns the working directory for a session, creating it and
// its screens/ subdirectory if missing.
func (m *Manager) SessionDir(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id required")
	}
	dir := filepath.Join(m.root, sanitize(sessionID))
	if err := os.MkdirAll(filepath.Join(dir, screensDir), 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// ScreensDir returns the screens/ directory for a session, creating the
// tree if needed.
func (m *Manager) ScreensDir(sessionID string) (string, error) {
	dir, err := m.SessionDir(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, screensDir), nil
}

// Screens lists the files under a session's screens/ directory sorted by
// name. A session with no screens yields an empty slice, not an error.
func (m *Manager) Screens(sessionID string) ([]string, error) {
	dir := filepath.Join(m.root, sanitize(sessionID), screensDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read screens dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Upsert records or refreshes a catalog entry and flushes the catalog.
// Existing records keep their CreatedAt and Favorite flag.
func (m *Manager) Upsert(rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("session id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if idx := ordered.FindByID(m.records, rec.ID, recordID); idx >= 0 {
		rec.CreatedAt = m.records[idx].CreatedAt
		rec.Favorite = m.records[idx].Favorite
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Directory == "" {
		rec.Directory = filepath.Join(m.root, sanitize(rec.ID))
	}
	m.records = ordered.UpsertByID(m.records, rec, recordID)
	return m.flushCatalog()
}

// Get returns the catalog entry for a session.
func (m *Manager) Get(sessionID string) (SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := ordered.FindByID(m.records, sessionID, recordID)
	if idx < 0 {
		return SessionRecord{}, false
	}
	return m.records[idx], true
}

// List returns all catalog entries, favorites first, then most recently
// updated.
func (m *Manager) List() []SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionRecord, len(m.records))
	copy(out, m.records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Favorite != out[j].Favorite {
			return out[i].Favorite
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (m *Manager) ToggleFavorite(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := ordered.FindByID(m.records, sessionID, recordID)
	if idx < 0 {
		return false, fmt.Errorf("session %s not in catalog", sessionID)
	}
	rec := m.records[idx]
	rec.Favorite = !rec.Favorite
	rec.UpdatedAt = time.Now().UTC()
	m.records[idx] = rec
	if err := m.flushCatalog(); err != nil {
		return false, err
	}
	return rec.Favorite, nil
}

// Delete removes the catalog entry and the session directory.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = ordered.RemoveByID(m.records, sessionID, recordID)
	if err := m.flushCatalog(); err != nil {
		return err
	}
	dir := filepath.Join(m.root, sanitize(sessionID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

func recordID(r SessionRecord) string { return r.ID }

func (m *Manager) loadCatalog() error {
	data, err := os.ReadFile(filepath.Join(m.root, catalogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read catalog: %w", err)
	}
	var records []SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	m.records = records
	return nil
}

// flushCatalog writes sessions.json atomically via rename. Callers hold mu.
func (m *Manager) flushCatalog() error {
	data, err := json.MarshalIndent(m.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	path := filepath.Join(m.root, catalogFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// sanitize maps a session id to a safe directory name.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
