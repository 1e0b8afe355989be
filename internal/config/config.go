package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BULKSEO_"

// Config holds application configuration.
type Config struct {
	Port              int           `toml:"port" env:"PORT"`
	DBPath            string        `toml:"db_path" env:"DB_PATH"`
	PollInterval      time.Duration `toml:"poll_interval" env:"POLL_INTERVAL"`
	BatchDelay        time.Duration `toml:"batch_delay" env:"BATCH_DELAY"`
	DefaultBatchSize  int           `toml:"default_batch_size" env:"DEFAULT_BATCH_SIZE"`
	MaxConcurrentJobs int           `toml:"max_concurrent_jobs" env:"MAX_CONCURRENT_JOBS"`
	WebhookSecret     string        `toml:"webhook_secret" env:"WEBHOOK_SECRET"`

	Log        LogConfig        `toml:"log" envPrefix:"LOG_"`
	Catalog    CatalogConfig    `toml:"catalog" envPrefix:"CATALOG_"`
	Generation GenerationConfig `toml:"generation" envPrefix:"GENERATION_"`
	Providers  []ProviderConfig `toml:"providers"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// CatalogConfig configures the product catalog client.
type CatalogConfig struct {
	Timeout time.Duration `toml:"timeout" env:"TIMEOUT"`
}

// GenerationConfig configures content generation.
type GenerationConfig struct {
	DefaultModel      string        `toml:"default_model" env:"DEFAULT_MODEL"`
	RequestsPerMinute int           `toml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	Timeout           time.Duration `toml:"timeout" env:"TIMEOUT"`
}

// ProviderConfig describes an OpenAI-compatible generation provider.
// Pattern is a regexp matched against the job's model id.
type ProviderConfig struct {
	Name      string `toml:"name"`
	Pattern   string `toml:"pattern"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APIKeyEnv string `toml:"api_key_env"`
}

// ResolveAPIKey returns the configured key, falling back to the named
// environment variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "bulkseo", "jobs.db")
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "bulkseo", "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              8080,
		DBPath:            DefaultDBPath(),
		PollInterval:      time.Second,
		BatchDelay:        5 * time.Second,
		DefaultBatchSize:  5,
		MaxConcurrentJobs: 4,
		Log:               LogConfig{Level: "info", Format: "json"},
		Catalog:           CatalogConfig{Timeout: 30 * time.Second},
		Generation: GenerationConfig{
			DefaultModel:      "gpt-4o-mini",
			RequestsPerMinute: 60,
			Timeout:           60 * time.Second,
		},
	}
}

// Load builds Config from defaults, a .env file, the TOML file at path and
// BULKSEO_* environment variables, in that order. An empty path reads
// DefaultConfigPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigPath()); err == nil {
			path = DefaultConfigPath()
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Providers are only read from the config file.
	providers := cfg.Providers
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Providers = providers

	if len(cfg.Providers) == 0 {
		cfg.Providers = []ProviderConfig{{Name: "openai", APIKeyEnv: "OPENAI_API_KEY"}}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.DBPath == "":
		return errors.New("db_path is required")
	case c.PollInterval <= 0:
		return errors.New("poll_interval must be positive")
	case c.BatchDelay < 0:
		return errors.New("batch_delay must not be negative")
	case c.DefaultBatchSize <= 0:
		return errors.New("default_batch_size must be positive")
	case c.MaxConcurrentJobs <= 0:
		return errors.New("max_concurrent_jobs must be positive")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
	}
	return nil
}
