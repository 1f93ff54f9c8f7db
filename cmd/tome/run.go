package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/server/endpoints"
)

var (
	runFile     string
	runProvider string
)

var runCmd = &cobra.Command{
	Use:   "run <job_id>",
	Short: "Run a job in this process",
	Long: `Start a new job from a plain-text file, or resume an existing one,
without a server.

A new job needs --file (use - for stdin). Resuming without --file
continues from the persisted units; with --file the text must match the
one the job was created from. Ctrl+C stops after the current unit and
prints the summary; run the same command again to resume.

Examples:
  tome run novel --file novel.txt     # Start a job
  tome run novel                      # Resume it
  tome run novel -o text              # Resume with a progress summary`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)

		var text *string
		if runFile != "" {
			data, err := readInput(runFile)
			if err != nil {
				return err
			}
			s := string(data)
			text = &s
		}

		svc, err := localServices(logger, runProvider)
		if err != nil {
			return err
		}
		defer svc.Close()
		svc.ConfigManager.WatchConfig()

		summary, err := svc.Orchestrator.Start(cmd.Context(), args[0], text)
		if err != nil {
			return err
		}
		return api.OutputOr(summary, func() string { return endpoints.RenderSummary(summary) })
	},
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "plain-text input file, - for stdin (required for a new job)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "provider name (overrides defaults.provider)")

	rootCmd.AddCommand(runCmd)
}
