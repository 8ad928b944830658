package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dilaghq/mirror/internal/config"
	"github.com/dilaghq/mirror/internal/workspace"
)

func openWorkspace(configPath string) (*workspace.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return workspace.Open(filepath.Join(cfg.Backend.DataDir, "sessions"))
}

func runSessionsList(cmd *cobra.Command, configPath string) error {
	ws, err := openWorkspace(configPath)
	if err != nil {
		return err
	}

	records := ws.List()
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions in catalog")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFAVORITE\tUPDATED")
	for _, rec := range records {
		fav := ""
		if rec.Favorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.ID, rec.Title, fav, rec.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runSessionsFavorite(cmd *cobra.Command, configPath, sessionID string) error {
	ws, err := openWorkspace(configPath)
	if err != nil {
		return err
	}
	fav, err := ws.ToggleFavorite(sessionID)
	if err != nil {
		return err
	}
	if fav {
		fmt.Fprintf(cmd.OutOrStdout(), "%s marked favorite\n", sessionID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s unmarked\n", sessionID)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, configPath, sessionID string) error {
	ws, err := openWorkspace(configPath)
	if err != nil {
		return err
	}
	if err := ws.Delete(sessionID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", sessionID)
	return nil
}
