package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/providers"
	"github.com/jackzampolin/tome/internal/server/endpoints"
)

func testConfig(t *testing.T) (Config, *providers.MockClient) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(cfgPath, []byte(`defaults:
  provider: mock
providers:
  mock:
    type: mock
    enabled: true
job:
  chunk_size: 1
  pacing_delay: 0s
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	cm, err := config.NewManager(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	h, err := home.New(filepath.Join(dir, "home"))
	if err != nil {
		t.Fatal(err)
	}
	mock := providers.NewMockClient()
	registry := providers.NewRegistry()
	registry.Register("mock", mock)
	return Config{
		Port:          "0",
		Home:          h,
		ConfigManager: cm,
		Registry:      registry,
		CORSOrigins:   []string{"http://localhost:5173"},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, mock
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without home")
	}
	cfg, _ := testConfig(t)
	cfg.ConfigManager = nil
	if _, err := New(cfg); err == nil {
		t.Error("expected error without config manager")
	}
}

func TestRequireInit_BeforeStart(t *testing.T) {
	cfg, _ := testConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/api/jobs before start = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health before start = %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg, _ := testConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func TestStartServeShutdown(t *testing.T) {
	cfg, mock := testConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	select {
	case <-s.Listening():
	case err := <-errCh:
		t.Fatalf("Start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	if !s.IsRunning() {
		t.Error("IsRunning = false while serving")
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	client := api.NewClient("http://" + s.Addr())
	var health endpoints.HealthResponse
	if err := client.Get(ctx, "/health", &health); err != nil {
		t.Fatal(err)
	}

	text := "Alpha. Beta."
	var summary job.Summary
	if err := client.Post(ctx, "/api/jobs/book/start", endpoints.StartJobRequest{Text: &text}, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Status != job.StatusCompleted || summary.TotalUnits != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if mock.Calls() != 2 {
		t.Errorf("generator calls = %d, want 2", mock.Calls())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	if s.IsRunning() {
		t.Error("IsRunning = true after shutdown")
	}
}
