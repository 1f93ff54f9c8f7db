package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/tome/internal/providers"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An invalid configuration is rejected.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used to report reload problems.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v, DefaultConfig())

	// Environment variables with TOME_ prefix, e.g. TOME_JOB_CHUNK_SIZE
	cm.v.SetEnvPrefix("TOME")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.tome")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers leaf keys so that a partial config file or a
// single env var overrides one setting without dropping its siblings.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("providers", d.Providers)
	v.SetDefault("defaults.provider", d.Defaults.Provider)

	v.SetDefault("job.chunk_size", d.Job.ChunkSize)
	v.SetDefault("job.boundaries", d.Job.Boundaries)
	v.SetDefault("job.max_retries", d.Job.MaxRetries)
	v.SetDefault("job.retry_delay", d.Job.RetryDelay)
	v.SetDefault("job.request_timeout", d.Job.RequestTimeout)
	v.SetDefault("job.pacing_delay", d.Job.PacingDelay)
	v.SetDefault("job.auto_backup", d.Job.AutoBackup)
	v.SetDefault("job.backup_interval", d.Job.BackupInterval)
	v.SetDefault("job.target_language", d.Job.TargetLanguage)
	v.SetDefault("job.target_script", d.Job.TargetScript)
	v.SetDefault("job.min_length_ratio", d.Job.MinLengthRatio)
	v.SetDefault("job.refusal_phrases", d.Job.RefusalPhrases)
	v.SetDefault("job.prompt_file", d.Job.PromptFile)
	v.SetDefault("job.proxies", d.Job.Proxies)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("ollama.manage_container", d.Ollama.ManageContainer)
	v.SetDefault("ollama.container_name", d.Ollama.ContainerName)
	v.SetDefault("ollama.image", d.Ollama.Image)
	v.SetDefault("ollama.port", d.Ollama.Port)
}

// load parses the current viper state into a validated Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
// A reload that fails validation keeps the previous config.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Providers: make(map[string]providers.ProviderConfig, len(c.Providers)),
	}

	for name, p := range c.Providers {
		cfg.Providers[name] = providers.ProviderConfig{
			Type:    p.Type,
			Model:   p.Model,
			BaseURL: p.BaseURL,
			APIKey:  ResolveEnvVars(p.APIKey),
			Timeout: p.Timeout,
			Enabled: p.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Tome configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx
# Any key can be overridden with a TOME_ variable, e.g. TOME_JOB_CHUNK_SIZE=1500

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
