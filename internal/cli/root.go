// Package cli holds the alertlog cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadopc/alertlog/internal/config"
	"github.com/sadopc/alertlog/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "alertlog",
	Short: "Terminal client for a device notification log feed",
	Long: `alertlog shows a live, filterable feed of device events
(calls, SMS and app notifications) from a log server.

Without a subcommand it starts the interactive TUI.

Commands:
  tui          - interactive feed (default)
  backup       - write every log to a JSON backup file
  restore      - import a backup file into the server
  send         - push a new log over the live channel
  mock-server  - run a local server for development`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/alertlog/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig resolves the config file and points logrus at the log file.
// The returned closer releases the log file.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	closer, err := logging.Setup(cfg.Logging.File, cfg.Logging.Level, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("set up logging: %w", err)
	}
	return cfg, closer, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
