package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dilaghq/mirror/internal/api"
	"github.com/dilaghq/mirror/internal/backoff"
	"github.com/dilaghq/mirror/internal/config"
	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/internal/launcher"
	"github.com/dilaghq/mirror/internal/observability"
	"github.com/dilaghq/mirror/internal/persist"
	"github.com/dilaghq/mirror/internal/store"
	"github.com/dilaghq/mirror/internal/stream"
	"github.com/dilaghq/mirror/internal/watcher"
	"github.com/dilaghq/mirror/internal/workspace"
)

// runRun implements the run command: launch or attach, restore durable
// state, mirror the event stream until interrupted.
func runRun(ctx context.Context, configPath, attach string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Log.Format,
	})
	slog.SetDefault(logger)

	logger.Info("starting mirror",
		"version", version,
		"commit", commit,
		"config", configPath,
		"debug", debug,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable storage first: the restored subset seeds the store before
	// any event arrives.
	db, err := persist.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	defer db.Close()

	durable, err := db.Load()
	if err != nil {
		return fmt.Errorf("load durable state: %w", err)
	}
	st := store.New(
		store.WithLogger(logger),
		store.WithSaver(db),
		store.WithDurable(durable),
	)

	// Resolve the backend: attach to a running server or launch one.
	baseURL := attach
	var launch *launcher.Launcher
	if baseURL == "" {
		launch = launcher.New(launcher.Config{
			Binary:   cfg.Backend.Binary,
			Hostname: cfg.Backend.Hostname,
			Port:     cfg.Backend.Port,
			DataDir:  cfg.Backend.DataDir,
			Logger:   logger,
		})
		port, err := launch.Start(ctx)
		if err != nil {
			return fmt.Errorf("launch backend: %w", err)
		}
		defer launch.Stop() //nolint:errcheck
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Backend.Hostname, port)
	}

	client, err := api.New(api.Config{BaseURL: baseURL, Logger: logger})
	if err != nil {
		return err
	}

	ws, err := workspace.Open(filepath.Join(cfg.Backend.DataDir, "sessions"))
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	errCh := make(chan error, 3)

	// Session workspace watcher.
	if cfg.Watcher.Enabled {
		w, err := watcher.New(watcher.Config{
			Sink:     st,
			Debounce: cfg.Watcher.Debounce,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("watcher: %w", err)
			}
		}()
		defer watchKnownSessions(w, ws, logger)()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.Metrics.Addr, logger); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("metrics endpoint: %w", err)
			}
		}()
	}

	// Seed the store and the local catalog from a snapshot before the
	// stream starts delivering increments. The same seed re-runs after
	// every resync: the store is empty again and the backend does not
	// replay history.
	seed := func() {
		seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := seedFromBackend(seedCtx, client, st, ws, logger); err != nil {
			logger.Warn("snapshot seed failed, continuing with stream only", "error", err)
		}
	}
	seed()

	manager := stream.New(stream.Config{
		URL: baseURL + cfg.Stream.Path,
		Policy: backoff.Policy{
			Base:   cfg.Stream.BaseDelay,
			Max:    cfg.Stream.MaxDelay,
			Factor: cfg.Stream.Factor,
		},
		MaxAttempts: cfg.Stream.MaxAttempts,
		Client:      streamClient(),
		OnResync:    seed,
		Logger:      logger,
	}, st)

	go func() {
		errCh <- manager.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}
}

// seedFromBackend pulls the session list and the current session's
// message snapshot through the control surface, replaying the snapshot as
// events so it flows through the same reconciliation path as the stream.
func seedFromBackend(ctx context.Context, client *api.Client, st *store.Store, ws *workspace.Manager, logger *slog.Logger) error {
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := ws.Upsert(workspace.SessionRecord{
			ID:        s.ID,
			Title:     s.Title,
			Directory: s.Directory,
		}); err != nil {
			return err
		}
	}
	logger.Debug("session catalog seeded", "count", len(sessions))

	current := st.CurrentSession()
	if current == "" {
		return nil
	}
	msgs, err := client.Messages(ctx, current)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		info := m.Info
		st.ApplyEvent(events.Event{
			Type:      events.TypeMessageUpdated,
			SessionID: info.SessionID,
			Message:   &events.MessageUpdated{Info: info},
		})
		for _, part := range m.Parts {
			p := part
			st.ApplyEvent(events.Event{
				Type:      events.TypePartUpdated,
				SessionID: info.SessionID,
				Part:      &events.PartUpdated{Part: p},
			})
		}
	}
	logger.Info("current session seeded", "session", current, "messages", len(msgs))
	return nil
}

// watchKnownSessions registers every cataloged session's screens/ dir
// with the watcher and returns a cleanup func.
func watchKnownSessions(w *watcher.Watcher, ws *workspace.Manager, logger *slog.Logger) func() {
	var dirs []string
	for _, rec := range ws.List() {
		dir, err := ws.ScreensDir(rec.ID)
		if err != nil {
			logger.Warn("workspace dir unavailable", "session", rec.ID, "error", err)
			continue
		}
		if err := w.Watch(rec.ID, dir); err != nil {
			logger.Warn("watch failed", "session", rec.ID, "error", err)
			continue
		}
		dirs = append(dirs, dir)
	}
	return func() {
		for _, dir := range dirs {
			w.Unwatch(dir) //nolint:errcheck
		}
	}
}

// streamClient builds the HTTP client for the event stream: no global
// timeout, since a healthy stream stays open indefinitely.
func streamClient() *http.Client {
	return &http.Client{}
}
