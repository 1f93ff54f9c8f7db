package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// ClearJobResponse confirms a cleared job.
type ClearJobResponse struct {
	JobID   string `json:"job_id"`
	Cleared bool   `json:"cleared"`
}

// ClearJobEndpoint handles DELETE /api/jobs/{id}.
type ClearJobEndpoint struct{}

func (e *ClearJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/jobs/{id}", e.handler
}

func (e *ClearJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete every record of a job
//	@Description	Removes state, units, source, output, backups, logs and recorded calls. Irreversible.
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	ClearJobResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [delete]
func (e *ClearJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, err := job.SanitizeID(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	if err := svcctx.OrchestratorFrom(r.Context()).Clear(r.Context(), id); err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearJobResponse{JobID: id, Cleared: true})
}

func (e *ClearJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <job_id>",
		Short: "Delete every record of a job (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			resp := ClearJobResponse{JobID: args[0], Cleared: true}
			return api.OutputOr(resp, func() string { return "Cleared " + args[0] })
		},
	}
}
