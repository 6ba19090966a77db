package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

func TestLoad(t *testing.T) {
	configPath := filepath.Join("..", "..", "config.yaml.example")
	cfg, err := Load(configPath)
	require.NoError(t, err, "example config should load")

	assert.Equal(t, "simulated", cfg.Provider.Name)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "America/New_York", cfg.Ledger.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.Server.RefreshInterval)
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_AV_KEY", "secret-av")
	cfg, err := Parse([]byte("provider:\n  name: alphaVantage\n  alpha_vantage_key: ${TEST_AV_KEY}\n"))
	require.NoError(t, err)

	settings := cfg.ProviderSettings()
	assert.Equal(t, models.ProviderAlphaVantage, settings.Provider)
	assert.Equal(t, "secret-av", settings.Keys.AlphaVantage)
	assert.True(t, settings.Configured())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("storage:\n  backend: file\n  pth: typo.json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("environment:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "alphaVantage", cfg.Provider.Name)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, defaultStoragePath, cfg.Storage.Path)
	assert.Equal(t, "UTC", cfg.Ledger.Timezone)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Resilience.MaxRetries)
	assert.Equal(t, 0.6, cfg.Resilience.BreakerFailureRatio)
	assert.Equal(t, time.Duration(0), cfg.Server.RefreshInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.Environment.LogLevel = "loud" }, "environment.log_level"},
		{"bad provider", func(c *Config) { c.Provider.Name = "bloomberg" }, "provider.name"},
		{"negative timeout", func(c *Config) { c.Provider.Timeout = -time.Second }, "provider.timeout"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = "sqlite"; c.Storage.Path = "" }, "storage.path"},
		{"bad timezone", func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }, "ledger.timezone"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative refresh", func(c *Config) { c.Server.RefreshInterval = -time.Minute }, "server.refresh_interval"},
		{"negative retries", func(c *Config) { c.Resilience.MaxRetries = -1 }, "resilience.max_retries"},
		{"backoff order", func(c *Config) {
			c.Resilience.InitialBackoff = 5 * time.Second
			c.Resilience.MaxBackoff = time.Second
		}, "resilience.max_backoff"},
		{"failure ratio", func(c *Config) { c.Resilience.BreakerFailureRatio = 1.5 }, "resilience.breaker_failure_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("memory backend needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = "memory"
		cfg.Storage.Path = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLocation(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Timezone = "America/New_York"
	assert.Equal(t, "America/New_York", cfg.Location().String())

	cfg.Ledger.Timezone = "nowhere"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Environment.LogLevel = "warn"
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
