// Package config loads and validates the mirror client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend" json:"backend"`
	Stream  StreamConfig  `yaml:"stream" json:"stream"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// BackendConfig describes how to reach (or launch) the backend agent
// process.
type BackendConfig struct {
	// Binary is the backend executable. Empty means probe the
	// conventional install locations.
	Binary string `yaml:"binary" json:"binary"`

	// Hostname the backend listens on.
	Hostname string `yaml:"hostname" json:"hostname"`

	// Port for the backend server. 0 picks a free port at launch.
	Port int `yaml:"port" json:"port"`

	// DataDir is the private config/sessions directory handed to the
	// backend via XDG_CONFIG_HOME.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// StreamConfig tunes the event stream connection.
type StreamConfig struct {
	// Path is the event stream endpoint path on the backend.
	Path string `yaml:"path" json:"path"`

	// BaseDelay and MaxDelay bound the reconnect backoff.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" json:"max_delay"`

	// Factor is the backoff multiplier per failed attempt.
	Factor float64 `yaml:"factor" json:"factor"`

	// MaxAttempts caps consecutive failures. 0 means retry forever.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// StorageConfig locates durable storage.
type StorageConfig struct {
	// Path is the SQLite database file for the durable subset.
	Path string `yaml:"path" json:"path"`
}

// WatcherConfig tunes the session workspace watcher.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Debounce coalesces bursts of writes to the same file.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Format: json or text.
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig exposes prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".mirror")
	return Config{
		Backend: BackendConfig{
			Hostname: "127.0.0.1",
			DataDir:  dataDir,
		},
		Stream: StreamConfig{
			Path:      "/event",
			BaseDelay: time.Second,
			MaxDelay:  16 * time.Second,
			Factor:    2,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "durable.db"),
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks invariants a bad config file could break.
func (c *Config) Validate() error {
	if c.Backend.Hostname == "" {
		return fmt.Errorf("backend.hostname is required")
	}
	if c.Backend.Port < 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port %d out of range", c.Backend.Port)
	}
	if c.Stream.BaseDelay <= 0 {
		return fmt.Errorf("stream.base_delay must be positive")
	}
	if c.Stream.MaxDelay < c.Stream.BaseDelay {
		return fmt.Errorf("stream.max_delay must be >= stream.base_delay")
	}
	if c.Stream.Factor < 1 {
		return fmt.Errorf("stream.factor must be >= 1")
	}
	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream.max_attempts must be >= 0")
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q not recognized", c.Log.Format)
	}
	return nil
}
