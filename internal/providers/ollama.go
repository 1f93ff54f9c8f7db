package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OllamaName           = "ollama"
	ollamaDefaultBaseURL = "http://127.0.0.1:11434"
	ollamaDefaultModel   = "llama3.1:8b"
)

// OllamaConfig holds configuration for the Ollama client.
type OllamaConfig struct {
	BaseURL    string        // default http://127.0.0.1:11434
	Model      string        // default model tag
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OllamaClient implements Generator against Ollama's native /api/generate.
type OllamaClient struct {
	baseURL string
	model   string
	timeout time.Duration
	pool    *clientPool
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		pool:    newClientPool(cfg.HTTPClient, cfg.Timeout),
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Name returns the client identifier.
func (c *OllamaClient) Name() string {
	return OllamaName
}

// Model returns the configured default model.
func (c *OllamaClient) Model() string {
	return c.model
}

// BaseURL returns the service endpoint.
func (c *OllamaClient) BaseURL() string {
	return c.baseURL
}

// Generate sends a non-streaming generation request.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}
	body := ollamaGenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	}
	if req.Temperature > 0 {
		body.Options = map[string]any{"temperature": req.Temperature}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.pool.get(req.Proxy).Do(httpReq)
	if err != nil {
		return nil, classifyTransport(OllamaName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(OllamaName, err)
	}

	var genResp ollamaGenerateResponse
	decodeErr := json.Unmarshal(respBody, &genResp)

	if resp.StatusCode != http.StatusOK {
		msg := genResp.Error
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, classifyStatus(OllamaName, resp.StatusCode, msg, resp.Header)
	}
	if decodeErr != nil {
		return nil, &TransientError{Provider: OllamaName, Message: "malformed response", Err: decodeErr}
	}

	return &GenerateResult{
		Text:             genResp.Response,
		PromptTokens:     genResp.PromptEvalCount,
		CompletionTokens: genResp.EvalCount,
		ExecutionTime:    time.Since(start),
		Provider:         OllamaName,
		ModelUsed:        genResp.Model,
		RequestID:        req.RequestID,
	}, nil
}

// HealthCheck verifies the Ollama server answers /api/tags.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.pool.get(nil).Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Generator = (*OllamaClient)(nil)
var _ HealthChecker = (*OllamaClient)(nil)
