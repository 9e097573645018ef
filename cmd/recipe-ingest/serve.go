package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run workers, the folder watcher, maintenance and the HTTP API",
	Long: `Starts the ingestion service. Documents dropped into <storage_path>/inbox
or uploaded through POST /v1/uploads are processed by the worker pool.
Ctrl+C stops intake and waits for in-flight jobs to finish.`,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Info("starting recipe-ingest",
		"version", Version,
		"workers", cfg.Workers,
		"inbox", service.Dirs.Inbox(),
		"provider", cfg.AI.Provider,
		"addr", cfg.HTTP.Addr,
	)
	if err := service.Serve(ctx); err != nil {
		return err
	}
	logger.Info("recipe-ingest stopped")
	return nil
}

