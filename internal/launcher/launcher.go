// Package launcher supervises the local backend agent process: locate the
// binary, pick a free port, spawn the server, stop it, restart it on a
// fresh port. The launcher never parses the backend's output; all state
// flows through the event stream and the control API.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrBinaryNotFound is returned when the backend executable cannot be
// located in any conventional install directory.
var ErrBinaryNotFound = errors.New("backend binary not found")

// binaryName is the backend executable this client drives.
const binaryName = "opencode"

// startupGrace is how long the launcher waits after spawn before
// reporting the port, giving the server time to bind.
const startupGrace = 500 * time.Millisecond

// Launcher manages a single backend server process.
type Launcher struct {
	binary   string
	hostname string
	dataDir  string
	logger   *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	port int
}

// Config configures a Launcher.
type Config struct {
	// Binary overrides binary discovery when set.
	Binary string

	// Hostname the backend binds to.
	Hostname string

	// Port to use. 0 picks a free port per start.
	Port int

	// DataDir becomes the backend's private XDG_CONFIG_HOME.
	DataDir string

	Logger *slog.Logger
}

// New creates a Launcher. The backend is not started until Start.
func New(cfg Config) *Launcher {
	if cfg.Hostname == "" {
		cfg.Hostname = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Launcher{
		binary:   cfg.Binary,
		hostname: cfg.Hostname,
		dataDir:  cfg.DataDir,
		logger:   cfg.Logger.With("component", "launcher"),
		port:     cfg.Port,
	}
}

// FindBinary probes the conventional install locations for the backend
// executable, falling back to PATH lookup.
func FindBinary() (string, error) {
	home, err := os.UserHomeDir()
	if err == nil {
		candidates := []string{
			filepath.Join(home, "."+binaryName, "bin", binaryName),
			filepath.Join(home, ".npm-global", "bin", binaryName),
			filepath.Join(home, ".bun", "bin", binaryName),
			filepath.Join(home, ".local", "bin", binaryName),
		}
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c, nil
			}
		}
	}
	for _, dir := range []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"} {
		c := filepath.Join(dir, binaryName)
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}
	return "", ErrBinaryNotFound
}

// FreePort asks the kernel for an unused TCP port.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("probe free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// augmentedPath prepends the conventional tool install directories to the
// inherited PATH, de-duplicated, so the backend can find its own runtime.
func augmentedPath() string {
	var extra []string
	if home, err := os.UserHomeDir(); err == nil {
		extra = append(extra,
			filepath.Join(home, ".bun", "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".local", "bin"),
		)
	}
	extra = append(extra, "/opt/homebrew/bin", "/usr/local/bin")

	seen := map[string]bool{}
	var parts []string
	for _, dir := range extra {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if !seen[dir] {
			seen[dir] = true
			parts = append(parts, dir)
		}
	}
	for _, dir := range strings.Split(os.Getenv("PATH"), string(os.PathListSeparator)) {
		dir = strings.TrimSpace(dir)
		if dir != "" && !seen[dir] {
			seen[dir] = true
			parts = append(parts, dir)
		}
	}
	if len(parts) == 0 {
		return "/usr/bin:/bin:/usr/sbin:/sbin"
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// Start spawns the backend server and returns the port it was told to
// bind. Calling Start while running returns the current port.
func (l *Launcher) Start(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd != nil && l.cmd.Process != nil {
		return l.port, nil
	}

	binary := l.binary
	if binary == "" {
		found, err := FindBinary()
		if err != nil {
			return 0, err
		}
		binary = found
	}

	port := l.port
	if port == 0 {
		free, err := FreePort()
		if err != nil {
			return 0, err
		}
		port = free
	}

	if l.dataDir != "" {
		if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
			return 0, fmt.Errorf("create data dir: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, binary,
		"serve", "--port", strconv.Itoa(port), "--hostname", l.hostname)
	cmd.Env = append(os.Environ(), "PATH="+augmentedPath())
	if l.dataDir != "" {
		cmd.Env = append(cmd.Env, "XDG_CONFIG_HOME="+l.dataDir)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start backend: %w", err)
	}
	l.cmd = cmd
	l.port = port
	l.logger.Info("backend started", "binary", binary, "port", port, "pid", cmd.Process.Pid)

	// Reap the process when it exits so Stop/restart see a clean slate.
	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		if l.cmd == cmd {
			l.cmd = nil
		}
		l.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			l.logger.Warn("backend exited", "error", err)
		}
	}()

	time.Sleep(startupGrace)
	return port, nil
}

// Port returns the last port handed to the backend, 0 if never started.
func (l *Launcher) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// Running reports whether the backend process is alive.
func (l *Launcher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil && l.cmd.Process != nil
}

// Stop terminates the backend process if running.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd == nil || l.cmd.Process == nil {
		return nil
	}
	pid := l.cmd.Process.Pid
	if err := l.cmd.Process.Signal(os.Interrupt); err != nil {
		// Already gone, or not signalable: fall back to kill.
		if killErr := l.cmd.Process.Kill(); killErr != nil {
			return fmt.Errorf("stop backend pid %d: %w", pid, killErr)
		}
	}
	l.cmd = nil
	l.logger.Info("backend stopped", "pid", pid)
	return nil
}

// Restart stops the backend and starts it again on a fresh port. The
// caller must reconnect the event stream afterwards.
func (l *Launcher) Restart(ctx context.Context) (int, error) {
	if err := l.Stop(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.port = 0
	l.mu.Unlock()
	return l.Start(ctx)
}
