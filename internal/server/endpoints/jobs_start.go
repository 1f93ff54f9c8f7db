package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// StartJobRequest is the body of a start request. Text is required for a
// new job and optional on resume.
type StartJobRequest struct {
	Text *string `json:"text,omitempty"`
}

// StartJobEndpoint handles POST /api/jobs/{id}/start.
type StartJobEndpoint struct{}

func (e *StartJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/start", e.handler
}

func (e *StartJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start or resume a job
//	@Description	Runs the job to completion or until the server stops, then returns the run summary.
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Job ID"
//	@Param			request	body		StartJobRequest	false	"Input text"
//	@Success		200		{object}	job.Summary
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs/{id}/start [post]
func (e *StartJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	// The run outlives a dropped client connection but not the server.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	if stopping := svcctx.StoppingFrom(r.Context()); stopping != nil {
		go func() {
			select {
			case <-stopping:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	summary, err := svcctx.OrchestratorFrom(r.Context()).Start(ctx, r.PathValue("id"), req.Text)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (e *StartJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "start <job_id>",
		Short: "Start a job from a text file, or resume it",
		Long: `Start a new job from a plain-text file, or resume an existing one.

The server runs the job to the end before answering. Resuming without
--file continues from the persisted units; with --file the text must
match the one the job was created from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req StartJobRequest
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				text := string(data)
				req.Text = &text
			}

			client := api.NewClient(getServerURL())
			var resp job.Summary
			if err := client.Post(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/start", req, &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return RenderSummary(&resp) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plain-text input file (required for a new job)")
	return cmd
}
