package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dilaghq/mirror/internal/api"
	"github.com/dilaghq/mirror/internal/config"
	"github.com/dilaghq/mirror/internal/persist"
)

// runStatus implements the status command: report the durable subset and,
// when a backend URL is known, probe the session list.
func runStatus(ctx context.Context, cmd *cobra.Command, configPath, baseURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := persist.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	defer db.Close()

	durable, err := db.Load()
	if err != nil {
		return fmt.Errorf("load durable state: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "durable store:    %s\n", cfg.Storage.Path)
	if durable.CurrentSessionID == "" {
		fmt.Fprintln(out, "current session:  (none)")
	} else {
		fmt.Fprintf(out, "current session:  %s\n", durable.CurrentSessionID)
	}
	fmt.Fprintf(out, "saved layouts:    %d\n", len(durable.Layouts))
	produced := 0
	for _, v := range durable.ProducedFiles {
		if v {
			produced++
		}
	}
	fmt.Fprintf(out, "produced files:   %d session(s)\n", produced)

	if baseURL == "" {
		return nil
	}

	client, err := api.New(api.Config{BaseURL: baseURL})
	if err != nil {
		return err
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("query backend: %w", err)
	}
	fmt.Fprintf(out, "backend:          %s (%d session(s))\n", baseURL, len(sessions))
	return nil
}
