package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdziat/recipe-ingest/internal/app"
	"github.com/jdziat/recipe-ingest/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	service  *app.App
)

var rootCmd = &cobra.Command{
	Use:   "recipe-ingest",
	Short: "Turn recipe documents into structured recipes",
	Long: `recipe-ingest watches a folder for recipe documents (txt, md, pdf, doc, docx),
extracts their text, translates it when needed, asks an AI model for a
structured recipe and stores the result, routing uncertain cases to review.

Configuration is read from --config (YAML), then .env, then RECIPE_INGEST_*
environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, closeLog, err = config.SetupLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		service, err = app.Open(cfg, logger)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if service != nil {
			if err := service.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(statsCmd)
}
