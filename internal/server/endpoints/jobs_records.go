package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/joblog"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/output"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// DateLayout is the format of the date query parameter of job logs.
const DateLayout = time.DateOnly

// JobLogsResponse holds one day of a job's log.
type JobLogsResponse struct {
	JobID   string         `json:"job_id"`
	Date    string         `json:"date"`
	Entries []joblog.Entry `json:"entries"`
}

// JobLogsEndpoint handles GET /api/jobs/{id}/logs.
type JobLogsEndpoint struct{}

func (e *JobLogsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/logs", e.handler
}

func (e *JobLogsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Read a job's log for one day
//	@Tags		jobs
//	@Produce	json
//	@Param		id		path		string	true	"Job ID"
//	@Param		date	query		string	false	"Day as YYYY-MM-DD (default today)"
//	@Success	200		{object}	JobLogsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/jobs/{id}/logs [get]
func (e *JobLogsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation(DateLayout, s, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
			return
		}
		day = d
	}
	id, err := job.SanitizeID(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	entries, err := svcctx.OrchestratorFrom(r.Context()).Logs(id, day)
	if err != nil {
		writeJobError(w, err)
		return
	}
	if entries == nil {
		entries = []joblog.Entry{}
	}
	writeJSON(w, http.StatusOK, JobLogsResponse{JobID: id, Date: day.Format(DateLayout), Entries: entries})
}

func (e *JobLogsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "logs <job_id>",
		Short: "Show a job's log for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs/" + url.PathEscape(args[0]) + "/logs"
			if date != "" {
				path += "?date=" + url.QueryEscape(date)
			}
			client := api.NewClient(getServerURL())
			var resp JobLogsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderLogs(resp.Entries) })
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show as YYYY-MM-DD (default today)")
	return cmd
}

// JobCallsResponse lists the recorded generation attempts of a job.
type JobCallsResponse struct {
	JobID string         `json:"job_id"`
	Calls []llmcall.Call `json:"calls"`
}

// JobCallsEndpoint handles GET /api/jobs/{id}/calls.
type JobCallsEndpoint struct{}

func (e *JobCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/calls", e.handler
}

func (e *JobCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	List recorded generation attempts of a job
//	@Tags		jobs
//	@Produce	json
//	@Param		id		path		string	true	"Job ID"
//	@Param		limit	query		int		false	"Maximum number of calls"
//	@Success	200		{object}	JobCallsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/jobs/{id}/calls [get]
func (e *JobCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", s))
			return
		}
		limit = n
	}
	id, err := job.SanitizeID(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	calls, err := svcctx.OrchestratorFrom(r.Context()).Calls(r.Context(), id, limit)
	if err != nil {
		writeJobError(w, err)
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, JobCallsResponse{JobID: id, Calls: calls})
}

func (e *JobCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls <job_id>",
		Short: "List the recorded generation attempts of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs/" + url.PathEscape(args[0]) + "/calls"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			client := api.NewClient(getServerURL())
			var resp JobCallsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderCalls(resp.Calls) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of calls (0 for all)")
	return cmd
}

// JobOutputResponse holds the parsed output artifact of a job.
type JobOutputResponse struct {
	JobID   string         `json:"job_id"`
	Entries []output.Entry `json:"entries"`
}

// JobOutputEndpoint handles GET /api/jobs/{id}/output.
type JobOutputEndpoint struct{}

func (e *JobOutputEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/output", e.handler
}

func (e *JobOutputEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Read the parsed output entries of a job
//	@Tags		jobs
//	@Produce	json
//	@Param		id	path		string	true	"Job ID"
//	@Success	200	{object}	JobOutputResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/jobs/{id}/output [get]
func (e *JobOutputEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, err := job.SanitizeID(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	entries, err := svcctx.OrchestratorFrom(r.Context()).Output(id)
	if err != nil {
		writeJobError(w, err)
		return
	}
	if entries == nil {
		entries = []output.Entry{}
	}
	writeJSON(w, http.StatusOK, JobOutputResponse{JobID: id, Entries: entries})
}

func (e *JobOutputEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "output <job_id>",
		Short: "Show a job's output entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobOutputResponse
			if err := client.Get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/output", &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderOutput(resp.Entries) })
		},
	}
}
