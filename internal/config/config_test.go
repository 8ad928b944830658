package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Stream.BaseDelay != time.Second || cfg.Stream.MaxDelay != 16*time.Second {
		t.Fatalf("unexpected backoff defaults: %+v", cfg.Stream)
	}
	if cfg.Stream.MaxAttempts != 0 {
		t.Fatalf("MaxAttempts = %d, want 0 (unlimited)", cfg.Stream.MaxAttempts)
	}
}

func TestLoadYAMLOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, "mirror.yaml", `
backend:
  hostname: 127.0.0.1
  port: 4096
stream:
  max_attempts: 10
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Port != 4096 {
		t.Fatalf("Port = %d, want 4096", cfg.Backend.Port)
	}
	if cfg.Stream.MaxAttempts != 10 {
		t.Fatalf("MaxAttempts = %d, want 10", cfg.Stream.MaxAttempts)
	}
	// Unset sections keep their defaults.
	if cfg.Stream.Path != "/event" {
		t.Fatalf("Path = %q, want /event", cfg.Stream.Path)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := writeConfig(t, "mirror.json5", `{
	// comments are allowed here
	backend: {hostname: "localhost", port: 9001},
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Hostname != "localhost" || cfg.Backend.Port != 9001 {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("MIRROR_TEST_DATA_DIR", "/tmp/mirror-test")
	path := writeConfig(t, "mirror.yaml", `
backend:
  data_dir: ${MIRROR_TEST_DATA_DIR}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.DataDir != "/tmp/mirror-test" {
		t.Fatalf("DataDir = %q", cfg.Backend.DataDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing hostname", func(c *Config) { c.Backend.Hostname = "" }},
		{"port out of range", func(c *Config) { c.Backend.Port = 70000 }},
		{"zero base delay", func(c *Config) { c.Stream.BaseDelay = 0 }},
		{"max below base", func(c *Config) { c.Stream.MaxDelay = c.Stream.BaseDelay / 2 }},
		{"factor below one", func(c *Config) { c.Stream.Factor = 0.5 }},
		{"negative attempts", func(c *Config) { c.Stream.MaxAttempts = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() accepted invalid config")
			}
		})
	}
}
