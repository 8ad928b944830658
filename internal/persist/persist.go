// Package persist is the durable-storage boundary. It serializes the
// store's declared durable subset into a single named blob in a local
// SQLite database on every mutation, and rehydrates it at startup before
// any event processing begins.
package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dilaghq/mirror/pkg/models"
)

// DefaultRecordName is the process-stable identifier for the durable blob.
const DefaultRecordName = "mirror"

const schema = `
CREATE TABLE IF NOT EXISTS durable_state (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// Store persists the durable subset as one named JSON blob.
type Store struct {
	db   *sql.DB
	name string
}

// Open opens (creating if needed) the durable database at path.
func Open(path string) (*Store, error) {
	return OpenNamed(path, DefaultRecordName)
}

// OpenNamed opens the database using a custom record name.
func OpenNamed(path, name string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create durable db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open durable db: %w", err)
	}
	// Single writer, single reader; extra connections only invite
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("init durable schema: %w", err)
	}
	return &Store{db: db, name: name}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the durable subset. It replaces the previous blob wholesale;
// the data must round-trip exactly.
func (s *Store) Save(state models.DurableState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal durable state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO durable_state (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.name, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save durable state: %w", err)
	}
	return nil
}

// Load reads the durable subset. A missing record yields the zero state,
// not an error: first run starts empty.
func (s *Store) Load() (models.DurableState, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM durable_state WHERE name = ?`, s.name).Scan(&data)
	if err == sql.ErrNoRows {
		return models.DurableState{}, nil
	}
	if err != nil {
		return models.DurableState{}, fmt.Errorf("load durable state: %w", err)
	}

	var state models.DurableState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.DurableState{}, fmt.Errorf("decode durable state: %w", err)
	}
	return state, nil
}
