package providers

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockResponse scripts the outcome of one call.
type MockResponse struct {
	Text string
	Err  error
}

// MockClient is a Generator for testing.
// Scripted responses are consumed in order; once exhausted every call
// succeeds with ResponseText (or Respond, when set).
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string
	Script       []MockResponse

	// Respond computes the response when no scripted entry is left.
	Respond func(req *GenerateRequest) (string, error)

	// State
	requestCount atomic.Int64

	mu      sync.Mutex
	prompts []string
	proxies []*url.URL
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Calls returns the number of Generate calls made.
func (c *MockClient) Calls() int {
	return int(c.requestCount.Load())
}

// Prompts returns the prompts received, in order.
func (c *MockClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Proxies returns the proxy of every call, in order (nil for direct).
func (c *MockClient) Proxies() []*url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*url.URL(nil), c.proxies...)
}

// Generate returns the next scripted response.
func (c *MockClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.proxies = append(c.proxies, req.Proxy)
	var next *MockResponse
	if len(c.Script) > 0 {
		next = &c.Script[0]
		c.Script = c.Script[1:]
	}
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, classifyTransport(MockClientName, ctx.Err())
		}
	}

	var (
		text string
		err  error
	)
	switch {
	case next != nil:
		text, err = next.Text, next.Err
	case c.Respond != nil:
		text, err = c.Respond(req)
	default:
		text = c.ResponseText
	}
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:          text,
		ExecutionTime: time.Since(start),
		Provider:      MockClientName,
		ModelUsed:     req.Model,
		RequestID:     fmt.Sprintf("mock-%d", count),
	}, nil
}

// HealthCheck always succeeds.
func (c *MockClient) HealthCheck(context.Context) error {
	return nil
}

var _ Generator = (*MockClient)(nil)
