package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/svcctx"
	"github.com/jackzampolin/tome/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "tome",
	Short: "Resumable chunked generation for long documents",
	Long: `Tome splits a long plain-text document into sentence-bounded units,
sends each unit to a generation provider (translation by default) and
records progress after every unit, so a multi-hour job survives restarts,
crashes and flaky providers and resumes exactly where it stopped.

Jobs can be run locally (tome run) or through the HTTP server (tome serve,
tome api ...). Both share the same state under ~/.tome.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.tome/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "tome home directory (default: ~/.tome)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "yaml", "json", "text":
		default:
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		api.SetOutputFormat(outputFormat)
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger at the --log-level.
func newLogger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	_ = lvl.UnmarshalText([]byte(strings.ToUpper(logLevel)))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// getHome returns the home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig reads --config, else the home config file when present, else
// searches ./config.yaml and ~/.tome/config.yaml.
func loadConfig(h *home.Dir, logger *slog.Logger) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	cm, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}
	cm.SetLogger(logger)
	return cm, nil
}

// localServices wires the orchestrator for commands that run without a server.
func localServices(logger *slog.Logger, provider string) (*svcctx.Services, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cm, err := loadConfig(h, logger)
	if err != nil {
		return nil, err
	}
	return svcctx.Build(svcctx.Options{
		Home:          h,
		ConfigManager: cm,
		Logger:        logger,
		Provider:      provider,
	})
}
