package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
)

// AppConfig is the full configuration of the command-line tool. Pipeline
// settings live at the top level of the file.
type AppConfig struct {
	Settings   `mapstructure:",squash"`
	Patterns   string           `mapstructure:"patterns"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
}

// EnrichmentConfig configures the optional language-model enrichment
type EnrichmentConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIKey            string        `mapstructure:"apiKey"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"baseURL"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
	MaxTokens         int           `mapstructure:"maxTokens"`
	Temperature       float64       `mapstructure:"temperature"`
}

// StoreConfig points at the run database; an empty path keeps runs in memory
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig sets the log level
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setAppDefaults(v *viper.Viper) {
	v.SetDefault("patterns", "")
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.apiKey", "")
	v.SetDefault("enrichment.model", "gpt-4o-mini")
	v.SetDefault("enrichment.baseURL", "")
	v.SetDefault("enrichment.timeout", 30*time.Second)
	v.SetDefault("enrichment.requestsPerSecond", 2.0)
	v.SetDefault("enrichment.burst", 1)
	v.SetDefault("enrichment.maxTokens", 300)
	v.SetDefault("enrichment.temperature", 0.2)
	v.SetDefault("store.path", "")
	v.SetDefault("log.level", "info")
}

// LoadApp reads the application configuration. OPENAI_API_KEY, when set,
// overrides the configured enrichment key.
func LoadApp(path string) (*AppConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.Enrichment.APIKey = apiKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the pipeline settings and the enrichment limits
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Enrichment.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: enrichment.timeout must be >= 0", internalerr.ErrInvalidConfig))
	}
	if c.Enrichment.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("%w: enrichment.requestsPerSecond must be >= 0", internalerr.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// EnrichmentReady reports whether enrichment is enabled and reachable: it
// needs an API key, or a base URL for a keyless compatible endpoint.
func (c *AppConfig) EnrichmentReady() bool {
	return c.Enrichment.Enabled && (c.Enrichment.APIKey != "" || c.Enrichment.BaseURL != "")
}
