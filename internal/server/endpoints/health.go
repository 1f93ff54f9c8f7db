package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/api"
	"github.com/jackzampolin/tome/internal/providers"
	"github.com/jackzampolin/tome/internal/svcctx"
)

// providerCheckTimeout bounds the readiness probe of the default provider.
const providerCheckTimeout = 5 * time.Second

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string { return "Status: " + resp.Status })
		},
	}
}

// ReadyEndpoint handles GET /ready. It reports ready when the default
// provider is registered and, if it supports it, passes a health check.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Readiness check including the default provider
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := defaultProvider(r.Context())
	resp := HealthResponse{Status: "ok", Provider: name}

	gen, err := defaultGenerator(r.Context(), name)
	if err == nil {
		if hc, ok := gen.(providers.HealthChecker); ok {
			ctx, cancel := context.WithTimeout(r.Context(), providerCheckTimeout)
			err = hc.HealthCheck(ctx)
			cancel()
		}
	}
	if err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the default provider)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string {
				return api.Fields("Status", resp.Status, "Provider", resp.Provider)
			})
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server          string        `json:"server"`
	Providers       []string      `json:"providers"`
	DefaultProvider string        `json:"default_provider"`
	RunningJobs     []string      `json:"running_jobs"`
	Ollama          *OllamaStatus `json:"ollama,omitempty"`
}

// OllamaStatus shows the managed Ollama container.
type OllamaStatus struct {
	Container string `json:"container"`
	URL       string `json:"url"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:          "running",
		Providers:       []string{},
		RunningJobs:     []string{},
		DefaultProvider: defaultProvider(ctx),
	}
	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.Providers = registry.List()
	}
	if orch := svcctx.OrchestratorFrom(ctx); orch != nil {
		resp.RunningJobs = orch.Running()
		slices.Sort(resp.RunningJobs)
	}
	if mgr := svcctx.OllamaFrom(ctx); mgr != nil {
		resp.Ollama = &OllamaStatus{URL: mgr.URL()}
		status, err := mgr.Status(ctx)
		if err != nil {
			resp.Ollama.Container = "error"
		} else {
			resp.Ollama.Container = string(status)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.OutputOr(resp, func() string {
				pairs := []string{
					"Server", resp.Server,
					"Providers", fmt.Sprint(resp.Providers),
					"Default", resp.DefaultProvider,
					"Running", fmt.Sprint(resp.RunningJobs),
				}
				if resp.Ollama != nil {
					pairs = append(pairs, "Ollama", resp.Ollama.Container+" "+api.Muted(resp.Ollama.URL))
				}
				return api.Fields(pairs...)
			})
		},
	}
}

func defaultProvider(ctx context.Context) string {
	if cm := svcctx.ConfigManagerFrom(ctx); cm != nil {
		return cm.Get().Defaults.Provider
	}
	return ""
}

func defaultGenerator(ctx context.Context, name string) (providers.Generator, error) {
	registry := svcctx.RegistryFrom(ctx)
	if registry == nil {
		return nil, fmt.Errorf("provider registry not initialized")
	}
	if name == "" {
		return nil, fmt.Errorf("no default provider configured")
	}
	return registry.Get(name)
}
