// Package cmd defines the civicdesk command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/internal/log"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "civicdesk",
	Short: "CivicDesk - semantic complaint intake for government portals",
	Long: `CivicDesk ingests citizen complaints (documents or text), classifies
them with Gemini, and indexes them for semantic search over pgvector.

Run "civicdesk serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// newLogger builds the process logger from the debug flag and installs it as
// the slog default so package-level logging (migrations, middleware) follows
// the same configuration.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)
	return logger
}
