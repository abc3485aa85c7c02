package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unspool/internal/catalog"
	"unspool/internal/ipc"
	"unspool/internal/logging"
)

// newCatalogCommand manages the duplicate catalog. Both subcommands prefer
// the daemon so a running rebuild is visible in its logs, and fall back to
// operating on the catalog file directly when no daemon is up.
func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and rebuild the duplicate catalog",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog location and track count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := fetchCatalogStats(ctx)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, stats)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Catalog path: %s\n", stats.Path)
			fmt.Fprintf(stdout, "Tracks: %d\n", stats.Tracks)
			return nil
		},
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rescan the library and rewrite the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if client, err := ctx.dialClient(); err == nil {
				defer func() { _ = client.Close() }()
				resp, err := client.CatalogRebuild()
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d tracks\n", resp.Scanned)
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:            "warn",
				Format:           "console",
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			cat := catalog.Open(cfg.Dedup.CatalogPath, logger)
			scanned, err := cat.Rebuild(cmd.Context(), cfg.Paths.LibraryDir)
			if err != nil {
				return fmt.Errorf("rebuild catalog: %w", err)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, ipc.CatalogRebuildResponse{Scanned: scanned})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d tracks\n", scanned)
			return nil
		},
	}

	cmd.AddCommand(statsCmd)
	cmd.AddCommand(rebuildCmd)
	return cmd
}

func fetchCatalogStats(ctx *commandContext) (*ipc.CatalogStatsResponse, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer func() { _ = client.Close() }()
		return client.CatalogStats()
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	tracks, err := catalog.Verify(cfg.Dedup.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return &ipc.CatalogStatsResponse{Path: cfg.Dedup.CatalogPath, Tracks: tracks}, nil
}
