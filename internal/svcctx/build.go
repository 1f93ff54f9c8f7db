package svcctx

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/job"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/progress"
	"github.com/jackzampolin/tome/internal/providers"
)

// Options configures Build.
type Options struct {
	Home          *home.Dir
	ConfigManager *config.Manager
	Logger        *slog.Logger

	// Provider overrides defaults.provider from the config.
	Provider string

	// Store and Registry replace the file store and the config-driven
	// registry, for tests.
	Store    progress.Store
	Registry *providers.Registry
}

// Build wires the provider registry, call journal and job orchestrator from
// configuration. Config changes reload the registry and the job settings.
// The caller must Close the returned services.
func Build(opts Options) (*Services, error) {
	if opts.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if opts.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Home.EnsureExists(); err != nil {
		return nil, err
	}
	cfg := opts.ConfigManager.Get()

	registry := opts.Registry
	if registry == nil {
		registry = providers.NewRegistry()
		registry.SetLogger(logger)
		registry.Reload(cfg.ToProviderRegistryConfig())
	}

	store := opts.Store
	if store == nil {
		fs, err := progress.NewFileStore(opts.Home.JobsDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open job store: %w", err)
		}
		store = fs
	}

	calls, err := llmcall.NewSQLiteStore(opts.Home.CallsDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open call journal: %w", err)
	}

	providerName := func(c *config.Config) string {
		if opts.Provider != "" {
			return opts.Provider
		}
		return c.Defaults.Provider
	}

	orch, err := job.New(job.Options{
		Store:     store,
		Generator: resolveGenerator(registry, providerName(cfg), logger),
		Home:      opts.Home,
		Config:    cfg.Job,
		Calls:     calls,
		Logger:    logger,
	})
	if err != nil {
		calls.Close()
		return nil, err
	}

	opts.ConfigManager.OnChange(func(c *config.Config) {
		if opts.Registry == nil {
			registry.Reload(c.ToProviderRegistryConfig())
		}
		orch.SetGenerator(resolveGenerator(registry, providerName(c), logger))
		if err := orch.SetConfig(c.Job); err != nil {
			logger.Warn("ignoring invalid job config", "error", err)
			return
		}
		logger.Info("job settings reloaded from config")
	})

	return &Services{
		Orchestrator:  orch,
		Registry:      registry,
		ConfigManager: opts.ConfigManager,
		Logger:        logger,
		Home:          opts.Home,
		Calls:         calls,
	}, nil
}

// Close releases the resources opened by Build.
func (s *Services) Close() error {
	if s.Calls == nil {
		return nil
	}
	return s.Calls.Close()
}

func resolveGenerator(registry *providers.Registry, name string, logger *slog.Logger) providers.Generator {
	if name == "" {
		logger.Warn("no default provider configured")
		return nil
	}
	g, err := registry.Get(name)
	if err != nil {
		logger.Warn("default provider unavailable", "provider", name, "error", err)
		return nil
	}
	return g
}
