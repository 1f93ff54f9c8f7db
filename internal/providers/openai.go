package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for an OpenAI-compatible chat client.
// OpenRouter and Ollama's /v1 endpoint work through BaseURL.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string        // Optional
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements Generator using the official OpenAI SDK.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	pool    *clientPool
	client  openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	pool := newClientPool(cfg.HTTPClient, cfg.Timeout)

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(pool.get(nil)),
		// Retries are owned by the engine so every attempt is counted.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		pool:    pool,
		client:  openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Generate sends a single chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	var reqOpts []option.RequestOption
	if req.Proxy != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.pool.get(req.Proxy)))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &RefusalError{Provider: OpenAIName, Message: "no choices returned"}
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, &RefusalError{Provider: OpenAIName, Message: choice.Message.Refusal}
	}
	if choice.FinishReason == "content_filter" {
		return nil, &RefusalError{Provider: OpenAIName, Message: "blocked by content filter"}
	}

	return &GenerateResult{
		Text:             choice.Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIName,
		ModelUsed:        completion.Model,
		RequestID:        completion.ID,
	}, nil
}

// HealthCheck verifies the API is reachable and the API key is valid.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return classifyStatus(OpenAIName, apiErr.StatusCode, apiErr.Message, header)
	}
	return classifyTransport(OpenAIName, err)
}

var _ Generator = (*OpenAIClient)(nil)
var _ HealthChecker = (*OpenAIClient)(nil)
