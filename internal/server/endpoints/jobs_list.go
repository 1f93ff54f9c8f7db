package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	List jobs
//	@Tags		jobs
//	@Produce	json
//	@Success	200	{object}	job.Listing
//	@Failure	500	{object}	ErrorResponse
//	@Router		/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	listing, err := svcctx.OrchestratorFrom(r.Context()).List(r.Context())
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp job.Listing
			if err := client.Get(cmd.Context(), "/api/jobs", &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderListing(&resp) })
		},
	}
}
