package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackzampolin/tome/internal/job"
)

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeJobError maps orchestrator errors to HTTP statuses.
func writeJobError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrInvalidJobID), errors.Is(err, job.ErrTextRequired):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, job.ErrStateCorruption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, job.ErrNoGenerator):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
