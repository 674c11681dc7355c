package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/agentcoord/internal/config"
	"github.com/aristath/agentcoord/internal/logging"
)

var (
	flagConfig   string // extra project config path
	flagSnapshot string // snapshot path override
	flagLogLevel string // log level override
)

var rootCmd = &cobra.Command{
	Use:   "agentcoord",
	Short: "Multi-agent task coordination",
	Long: `agentcoord tracks task state, coordinates agents and sessions, and
delivers messages between agents over pluggable transports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a project config file")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "task state snapshot path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig merges defaults, conventional paths, and command-line flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load("", flagConfig)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if flagSnapshot != "" {
		cfg.Snapshot = flagSnapshot
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}), nil
}
