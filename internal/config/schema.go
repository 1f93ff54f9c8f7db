package config

import (
	"errors"
	"fmt"
	"time"
	"unicode"
)

// Config holds tome configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults  DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Job       JobConfig              `mapstructure:"job" yaml:"job"`
	Server    ServerCfg              `mapstructure:"server" yaml:"server"`
	Ollama    OllamaConfig           `mapstructure:"ollama" yaml:"ollama"`
}

// ProviderCfg configures a generation provider.
type ProviderCfg struct {
	Type    string        `mapstructure:"type" yaml:"type"`         // "ollama", "openai", "mock"
	Model   string        `mapstructure:"model" yaml:"model"`       // Model name
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"` // Service endpoint
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`   // HTTP client timeout
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
}

// JobConfig holds the tunables for a generation job.
type JobConfig struct {
	// ChunkSize is the soft upper bound on unit length, in characters.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
	// Boundaries lists the sentence terminators used when chunking.
	Boundaries string `mapstructure:"boundaries" yaml:"boundaries"`

	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	PacingDelay    time.Duration `mapstructure:"pacing_delay" yaml:"pacing_delay"`

	AutoBackup     bool `mapstructure:"auto_backup" yaml:"auto_backup"`
	BackupInterval int  `mapstructure:"backup_interval" yaml:"backup_interval"`

	// TargetLanguage is passed to the prompt; TargetScript is a Unicode
	// script name (see unicode.Scripts) the output is expected to contain.
	TargetLanguage string   `mapstructure:"target_language" yaml:"target_language"`
	TargetScript   string   `mapstructure:"target_script" yaml:"target_script"`
	MinLengthRatio float64  `mapstructure:"min_length_ratio" yaml:"min_length_ratio"`
	RefusalPhrases []string `mapstructure:"refusal_phrases" yaml:"refusal_phrases"`

	// PromptFile overrides the embedded prompt template when set.
	PromptFile string `mapstructure:"prompt_file" yaml:"prompt_file"`
	// Proxies are rotated across failed attempts. Empty means direct.
	Proxies []string `mapstructure:"proxies" yaml:"proxies"`
}

// ServerCfg configures the HTTP API.
type ServerCfg struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        string   `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// OllamaConfig holds the managed Ollama container configuration.
type OllamaConfig struct {
	// ManageContainer starts the container with `tome serve`.
	ManageContainer bool `mapstructure:"manage_container" yaml:"manage_container"`
	// ContainerName is the Docker container name (default: tome-ollama)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: ollama/ollama:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 11434)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"ollama": {
				Type:    "ollama",
				Model:   "llama3.1:8b",
				BaseURL: "http://127.0.0.1:11434",
				Timeout: 5 * time.Minute,
				Enabled: true,
			},
			"openrouter": {
				Type:    "openai",
				Model:   "anthropic/claude-sonnet-4",
				BaseURL: "https://openrouter.ai/api/v1",
				APIKey:  "${OPENROUTER_API_KEY}",
				Timeout: 5 * time.Minute,
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			Provider: "ollama",
		},
		Job: DefaultJobConfig(),
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Ollama: OllamaConfig{
			ContainerName: "tome-ollama",
			Image:         "ollama/ollama:latest",
			Port:          "11434",
		},
	}
}

// DefaultJobConfig returns the job settings used when nothing is configured.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		ChunkSize:      2000,
		Boundaries:     ".!?।",
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		RequestTimeout: 5 * time.Minute,
		PacingDelay:    2500 * time.Millisecond,
		AutoBackup:     true,
		BackupInterval: 10,
		TargetLanguage: "Hindi",
		TargetScript:   "Devanagari",
		MinLengthRatio: 0.3,
		RefusalPhrases: []string{"I cannot", "I apologize"},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Job.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Defaults.Provider != "" {
		p, ok := c.Providers[c.Defaults.Provider]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("defaults.provider %q is not configured", c.Defaults.Provider))
		case !p.Enabled:
			errs = append(errs, fmt.Errorf("defaults.provider %q is disabled", c.Defaults.Provider))
		}
	}
	for name, p := range c.Providers {
		switch p.Type {
		case "ollama", "openai", "mock":
		default:
			errs = append(errs, fmt.Errorf("providers.%s: unknown type %q", name, p.Type))
		}
	}
	return errors.Join(errs...)
}

// Validate checks job settings for values the orchestrator cannot run with.
func (j JobConfig) Validate() error {
	var errs []error
	if j.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("job.chunk_size must be positive, got %d", j.ChunkSize))
	}
	if j.Boundaries == "" {
		errs = append(errs, errors.New("job.boundaries must not be empty"))
	}
	if j.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("job.max_retries must be at least 1, got %d", j.MaxRetries))
	}
	if j.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("job.retry_delay must not be negative, got %s", j.RetryDelay))
	}
	if j.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("job.request_timeout must be positive, got %s", j.RequestTimeout))
	}
	if j.PacingDelay < 0 {
		errs = append(errs, fmt.Errorf("job.pacing_delay must not be negative, got %s", j.PacingDelay))
	}
	if j.AutoBackup && j.BackupInterval < 1 {
		errs = append(errs, fmt.Errorf("job.backup_interval must be at least 1 when auto_backup is on, got %d", j.BackupInterval))
	}
	if j.MinLengthRatio < 0 || j.MinLengthRatio > 1 {
		errs = append(errs, fmt.Errorf("job.min_length_ratio must be within [0,1], got %g", j.MinLengthRatio))
	}
	if j.TargetScript != "" {
		if _, ok := unicode.Scripts[j.TargetScript]; !ok {
			errs = append(errs, fmt.Errorf("job.target_script %q is not a known Unicode script", j.TargetScript))
		}
	}
	return errors.Join(errs...)
}
