// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/ollama"
	"github.com/jackzampolin/tome/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Orchestrator  *job.Orchestrator
	Registry      *providers.Registry
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
	Calls         *llmcall.SQLiteStore
	// Ollama is nil unless the server manages an Ollama container.
	Ollama *ollama.DockerManager
	// Stopping is closed when the server begins shutting down.
	Stopping <-chan struct{}
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// OrchestratorFrom extracts the job orchestrator from context.
func OrchestratorFrom(ctx context.Context) *job.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// OllamaFrom extracts the managed Ollama container from context.
func OllamaFrom(ctx context.Context) *ollama.DockerManager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ollama
	}
	return nil
}

// StoppingFrom returns the channel closed at server shutdown, or nil.
func StoppingFrom(ctx context.Context) <-chan struct{} {
	if s := ServicesFrom(ctx); s != nil {
		return s.Stopping
	}
	return nil
}
