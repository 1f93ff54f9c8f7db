package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds references to generators.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
	configs    map[string]ProviderConfig
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
		configs:    make(map[string]ProviderConfig),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers a generator by name.
func (r *Registry) Register(name string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("registered generator", "name", name)
	}
}

// Unregister removes a generator by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.generators, name)
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("unregistered generator", "name", name)
	}
}

// Get returns a generator by name.
func (r *Registry) Get(name string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("generator not found: %s", name)
	}
	return g, nil
}

// Has checks if a generator is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[name]
	return ok
}

// List returns all registered generator names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generators returns a copy of all registered generators.
func (r *Registry) Generators() map[string]Generator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]Generator, len(r.generators))
	for name, g := range r.generators {
		result[name] = g
	}
	return result
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// ProviderConfig matches config.ProviderCfg with resolved API key.
type ProviderConfig struct {
	Type    string // "ollama", "openai", "mock"
	Model   string
	BaseURL string
	APIKey  string // Resolved API key
	Timeout time.Duration
	Enabled bool
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !usable(provCfg) {
			continue
		}
		want[name] = true

		prev, hasExisting := r.configs[name]
		if hasExisting && prev == provCfg {
			continue
		}
		g := createGenerator(provCfg)
		if g == nil {
			continue
		}
		r.generators[name] = g
		r.configs[name] = provCfg
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated generator", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered generator", "name", name, "type", provCfg.Type)
			}
		}
	}

	// Remove config-driven providers that are no longer configured.
	// Generators added with Register are left alone.
	for name := range r.configs {
		if !want[name] {
			delete(r.generators, name)
			delete(r.configs, name)
			if r.logger != nil {
				r.logger.Info("unregistered generator", "name", name)
			}
		}
	}
}

// usable reports whether a provider config can be instantiated.
// OpenAI-compatible services need an API key; Ollama does not.
func usable(cfg ProviderConfig) bool {
	if !cfg.Enabled {
		return false
	}
	return cfg.Type != "openai" || cfg.APIKey != ""
}

// createGenerator creates a generator based on provider type.
func createGenerator(cfg ProviderConfig) Generator {
	switch cfg.Type {
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case "mock":
		return NewMockClient()
	default:
		return nil
	}
}
