package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/server/endpoints"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage local jobs",
	Long: `Inspect and manage jobs directly in the home directory, without a
server. Use 'tome api jobs' for the same operations over HTTP.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs with their progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		listing, err := svc.Orchestrator.List(cmd.Context())
		if err != nil {
			return err
		}
		return api.OutputOr(listing, func() string { return endpoints.RenderListing(listing) })
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show a job's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		view, err := svc.Orchestrator.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.OutputOr(view, func() string { return endpoints.RenderView(view) })
	},
}

var clearYes bool

var jobsClearCmd = &cobra.Command{
	Use:   "clear <job_id>",
	Short: "Delete every record of a job (irreversible)",
	Long: `Delete a job's state, units, source text, output, backups, logs and
recorded calls. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			fmt.Fprintf(os.Stderr, "Delete every record of %q? [y/N] ", args[0])
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				return fmt.Errorf("aborted")
			}
		}

		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Orchestrator.Clear(cmd.Context(), args[0]); err != nil {
			return err
		}
		resp := endpoints.ClearJobResponse{JobID: args[0], Cleared: true}
		return api.OutputOr(resp, func() string { return "Cleared " + args[0] })
	},
}

var logsDate string

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Show a job's log for one day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now()
		if logsDate != "" {
			d, err := time.ParseInLocation(endpoints.DateLayout, logsDate, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", logsDate)
			}
			day = d
		}

		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.Orchestrator.Logs(args[0], day)
		if err != nil {
			return err
		}
		resp := endpoints.JobLogsResponse{JobID: args[0], Date: day.Format(endpoints.DateLayout), Entries: entries}
		return api.OutputOr(resp, func() string { return endpoints.RenderLogs(entries) })
	},
}

var callsLimit int

var jobsCallsCmd = &cobra.Command{
	Use:   "calls <job_id>",
	Short: "List the recorded generation attempts of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		calls, err := svc.Orchestrator.Calls(cmd.Context(), args[0], callsLimit)
		if err != nil {
			return err
		}
		resp := endpoints.JobCallsResponse{JobID: args[0], Calls: calls}
		return api.OutputOr(resp, func() string { return endpoints.RenderCalls(calls) })
	},
}

var jobsOutputCmd = &cobra.Command{
	Use:   "output <job_id>",
	Short: "Show a job's output entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localServices(newLogger(os.Stderr), "")
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.Orchestrator.Output(args[0])
		if err != nil {
			return err
		}
		resp := endpoints.JobOutputResponse{JobID: args[0], Entries: entries}
		return api.OutputOr(resp, func() string { return endpoints.RenderOutput(entries) })
	},
}

func init() {
	jobsClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	jobsLogsCmd.Flags().StringVar(&logsDate, "date", "", "day to show as YYYY-MM-DD (default today)")
	jobsCallsCmd.Flags().IntVar(&callsLimit, "limit", 0, "maximum number of calls (0 for all)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsClearCmd)
	jobsCmd.AddCommand(jobsLogsCmd)
	jobsCmd.AddCommand(jobsCallsCmd)
	jobsCmd.AddCommand(jobsOutputCmd)

	rootCmd.AddCommand(jobsCmd)
}
