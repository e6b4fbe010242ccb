// Package cmd implements the flywheel command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Alroma79/data-flywheel-chatbot/internal/config"
	"github.com/Alroma79/data-flywheel-chatbot/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "flywheel",
	Short: "Document-grounded conversational assistant",
	Long: `Flywheel is a conversational assistant that grounds its replies in
documents you upload. Replies cite their sources, conversations are kept
in sessions, and user feedback is collected to improve the knowledge base
over time.

Run 'flywheel serve' to start the HTTP API, or 'flywheel ask' for a
one-shot question from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads .env (when present), loads configuration and installs
// the global logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	return cfg, logger, nil
}
