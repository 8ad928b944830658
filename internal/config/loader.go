package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file, expands environment variables, applies
// defaults for unset fields and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		if err := json5.Unmarshal(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills fields the file left zero. Decoding into a
// pre-populated struct covers most of this, except where the file set an
// enclosing section and zeroed siblings.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Backend.Hostname == "" {
		cfg.Backend.Hostname = def.Backend.Hostname
	}
	if cfg.Backend.DataDir == "" {
		cfg.Backend.DataDir = def.Backend.DataDir
	}
	if cfg.Stream.Path == "" {
		cfg.Stream.Path = def.Stream.Path
	}
	if cfg.Stream.BaseDelay == 0 {
		cfg.Stream.BaseDelay = def.Stream.BaseDelay
	}
	if cfg.Stream.MaxDelay == 0 {
		cfg.Stream.MaxDelay = def.Stream.MaxDelay
	}
	if cfg.Stream.Factor == 0 {
		cfg.Stream.Factor = def.Stream.Factor
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.Watcher.Debounce == 0 {
		cfg.Watcher.Debounce = def.Watcher.Debounce
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
