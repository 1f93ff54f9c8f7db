package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// WaitReady polls the Ollama tags endpoint once a second until it answers 200.
func WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	url := strings.TrimRight(baseURL, "/") + "/api/tags"

	attempts := uint(timeout.Seconds())
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// HasModel reports whether model is already pulled.
func HasModel(ctx context.Context, baseURL, model string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("failed to list models: status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode model list: %w", err)
	}
	want := model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range tags.Models {
		if m.Name == model || m.Name == want || m.Model == model || m.Model == want {
			return true, nil
		}
	}
	return false, nil
}

// PullModel downloads model into the server. It blocks until the pull finishes.
func PullModel(ctx context.Context, baseURL, model string) error {
	body, _ := json.Marshal(map[string]any{"model": model, "stream": false})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to pull model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &status); err == nil && status.Error != "" {
		return fmt.Errorf("failed to pull model %s: %s", model, status.Error)
	}
	return nil
}

// EnsureModel pulls model unless it is already present.
func EnsureModel(ctx context.Context, baseURL, model string) (pulled bool, err error) {
	ok, err := HasModel(ctx, baseURL, model)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return true, PullModel(ctx, baseURL, model)
}
