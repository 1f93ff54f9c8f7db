// Package llmcall records every generation attempt for traceability.
// Each attempt carries the prompt hash, provider, latency and outcome.
package llmcall

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/tome/internal/providers"
)

// Call represents one recorded generation attempt.
type Call struct {
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	JobID   string `json:"job_id"`
	RunID   string `json:"run_id,omitempty"`
	Unit    int    `json:"unit"`
	Attempt int    `json:"attempt"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Proxy    string `json:"proxy,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	ResponseLen int    `json:"response_len"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an attempt.
type RecordOptions struct {
	JobID      string
	RunID      string
	Unit       int
	Attempt    int
	PromptKey  string
	PromptHash string
	Provider   string
	Proxy      string
	Latency    time.Duration
}

// Recorder persists generation attempts.
type Recorder interface {
	Record(ctx context.Context, call *Call) error
}

// NewCall builds a Call from an attempt's result or error.
// A nil result with a nil error is recorded as a failed attempt.
func NewCall(result *providers.GenerateResult, err error, opts RecordOptions) *Call {
	call := &Call{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		LatencyMs:  int(opts.Latency.Milliseconds()),
		JobID:      opts.JobID,
		RunID:      opts.RunID,
		Unit:       opts.Unit,
		Attempt:    opts.Attempt,
		PromptKey:  opts.PromptKey,
		PromptHash: opts.PromptHash,
		Provider:   opts.Provider,
		Proxy:      opts.Proxy,
	}

	if result != nil {
		if result.Provider != "" {
			call.Provider = result.Provider
		}
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.ResponseLen = len([]rune(result.Text))
		if opts.Latency == 0 {
			call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		}
	}

	switch {
	case err != nil:
		call.Error = err.Error()
	case result == nil:
		call.Error = "no result"
	default:
		call.Success = true
	}
	return call
}
