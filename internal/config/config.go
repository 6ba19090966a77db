// Package config provides configuration management for the options tracker.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // ledger.timezone must resolve in minimal containers

	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// Defaults applied by normalize when a value is unset
const (
	defaultLogLevel            = "info"
	defaultProviderTimeout     = 15 * time.Second
	defaultGeminiModel         = "gemini-2.5-flash"
	defaultStorageBackend      = "file"
	defaultStoragePath         = "tracker_state.json"
	defaultTimezone            = "UTC"
	defaultServerPort          = 8080
	defaultRefreshInterval     = 5 * time.Minute
	defaultMaxRetries          = 3
	defaultInitialBackoff      = time.Second
	defaultMaxBackoff          = 10 * time.Second
	defaultBreakerMaxRequests  = 3
	defaultBreakerInterval     = 60 * time.Second
	defaultBreakerTimeout      = 30 * time.Second
	defaultBreakerMinRequests  = 5
	defaultBreakerFailureRatio = 0.6
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Provider    ProviderConfig    `yaml:"provider"`
	Storage     StorageConfig     `yaml:"storage"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Server      ServerConfig      `yaml:"server"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ProviderConfig seeds the quote provider settings. Settings saved through the
// API or CLI take precedence once they are configured.
type ProviderConfig struct {
	Name            string        `yaml:"name"` // alphaVantage | alpaca | tradier | simulated
	AlphaVantageKey string        `yaml:"alpha_vantage_key"`
	AlpacaKey       string        `yaml:"alpaca_key"`
	AlpacaSecret    string        `yaml:"alpaca_secret"`
	TradierToken    string        `yaml:"tradier_token"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	Timeout         time.Duration `yaml:"timeout"`
	AlphaVantageURL string        `yaml:"alpha_vantage_url"` // override for testing
	AlpacaDataURL   string        `yaml:"alpaca_data_url"`   // override for testing
	TradierURL      string        `yaml:"tradier_url"`       // https://sandbox.tradier.com/v1 for sandbox tokens
}

// StorageConfig defines where ledger state is persisted.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file | sqlite | memory
	Path    string `yaml:"path"`
}

// LedgerConfig defines ledger behavior.
type LedgerConfig struct {
	Timezone string `yaml:"timezone"` // calendar used for "today"
}

// ServerConfig defines the HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	AuthToken       string        `yaml:"auth_token"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 disables background refresh
}

// ResilienceConfig defines retry and circuit breaker settings for provider calls.
type ResilienceConfig struct {
	MaxRetries          int           `yaml:"max_retries"`
	InitialBackoff      time.Duration `yaml:"initial_backoff"`
	MaxBackoff          time.Duration `yaml:"max_backoff"`
	BreakerMaxRequests  uint32        `yaml:"breaker_max_requests"`
	BreakerInterval     time.Duration `yaml:"breaker_interval"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// Validate checks that all configuration values are valid and fills defaults.
func (c *Config) Validate() error {
	c.normalize()

	if _, err := logrus.ParseLevel(c.Environment.LogLevel); err != nil {
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	if !models.ProviderName(c.Provider.Name).Valid() {
		return fmt.Errorf("provider.name must be 'alphaVantage', 'alpaca', 'tradier' or 'simulated'")
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must be >= 0")
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be 'file', 'sqlite' or 'memory'")
	}

	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		return fmt.Errorf("ledger.timezone invalid: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RefreshInterval < 0 {
		return fmt.Errorf("server.refresh_interval must be >= 0")
	}

	r := c.Resilience
	if r.MaxRetries < 0 {
		return fmt.Errorf("resilience.max_retries must be >= 0")
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("resilience.max_backoff (%s) must be >= resilience.initial_backoff (%s)",
			r.MaxBackoff, r.InitialBackoff)
	}
	if r.BreakerFailureRatio <= 0 || r.BreakerFailureRatio > 1 {
		return fmt.Errorf("resilience.breaker_failure_ratio must be in (0,1]")
	}

	return nil
}

// normalize sets default values for unset fields
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = defaultLogLevel
	}
	if c.Provider.Name == "" {
		c.Provider.Name = string(models.ProviderAlphaVantage)
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = defaultProviderTimeout
	}
	if c.Provider.GeminiModel == "" {
		c.Provider.GeminiModel = defaultGeminiModel
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if c.Storage.Path == "" && c.Storage.Backend == defaultStorageBackend {
		c.Storage.Path = defaultStoragePath
	}
	if c.Ledger.Timezone == "" {
		c.Ledger.Timezone = defaultTimezone
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}

	r := &c.Resilience
	if r.MaxRetries == 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = defaultInitialBackoff
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = defaultMaxBackoff
	}
	if r.BreakerMaxRequests == 0 {
		r.BreakerMaxRequests = defaultBreakerMaxRequests
	}
	if r.BreakerInterval == 0 {
		r.BreakerInterval = defaultBreakerInterval
	}
	if r.BreakerTimeout == 0 {
		r.BreakerTimeout = defaultBreakerTimeout
	}
	if r.BreakerMinRequests == 0 {
		r.BreakerMinRequests = defaultBreakerMinRequests
	}
	if r.BreakerFailureRatio == 0 {
		r.BreakerFailureRatio = defaultBreakerFailureRatio
	}
}

// ProviderSettings returns the provider selection and keys from the config file.
func (c *Config) ProviderSettings() models.ProviderSettings {
	return models.ProviderSettings{
		Provider: models.ProviderName(c.Provider.Name),
		Keys: models.APIKeys{
			AlphaVantage: c.Provider.AlphaVantageKey,
			AlpacaKey:    c.Provider.AlpacaKey,
			AlpacaSecret: c.Provider.AlpacaSecret,
			Tradier:      c.Provider.TradierToken,
			Gemini:       c.Provider.GeminiKey,
		},
	}
}

// Location returns the ledger calendar time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewLogger builds the application logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
