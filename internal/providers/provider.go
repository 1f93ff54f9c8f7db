package providers

import (
	"context"
	"net/url"
	"time"
)

// Generator is the external text generation capability a job calls once
// per attempt. Implementations classify failures as *TransientError or
// *RefusalError; any other error is treated as transient by callers.
type Generator interface {
	// Name returns the client identifier (e.g., "ollama").
	Name() string

	// Generate produces text for a single prompt.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

// HealthChecker is implemented by generators that can verify their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	// Required
	Prompt string `json:"prompt"`

	// Optional system instructions, for chat-style backends.
	System string `json:"system,omitempty"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`

	// Proxy routes this call through an HTTP proxy. Nil means direct.
	Proxy *url.URL `json:"-"`

	// Request tracking
	RequestID string `json:"-"`
}

// GenerateResult is the response of a successful call.
type GenerateResult struct {
	Text string `json:"text"`

	// Token counts, when the backend reports them.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	RequestID string `json:"request_id"`
}
