package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neexbeast/starwatch/internal/app"
	"github.com/neexbeast/starwatch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "starctl",
	Short: "starctl - Taiwan stargazing forecast operator tool",
	Long: `starctl refreshes the weekly forecast tables and prints the same
advisories the chat bot sends, straight from the CWA open-data API.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup loads and validates the configuration and wires the service.
func setup(cmd *cobra.Command) (*app.App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(cmd.Context(), cfg, newLogger(cfg))
}
