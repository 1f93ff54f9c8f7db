package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// GetJobEndpoint handles GET /api/jobs/{id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Get job progress
//	@Tags		jobs
//	@Produce	json
//	@Param		id	path		string	true	"Job ID"
//	@Success	200	{object}	job.View
//	@Failure	404	{object}	ErrorResponse
//	@Failure	422	{object}	ErrorResponse
//	@Router		/api/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	view, err := svcctx.OrchestratorFrom(r.Context()).Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show a job's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp job.View
			if err := client.Get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderView(&resp) })
		},
	}
}
