package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/config"
	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/quotes"
	"github.com/eddiefleurent/options_tracker/internal/report"
	"github.com/eddiefleurent/options_tracker/internal/retry"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

// A CLI invocation is short lived, so global flags are fine here.
var (
	configPath = flag.String("config", "config.yaml", "Path to the configuration file")
	envFile    = flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	width      = flag.Int("width", 100, "Terminal width for rendered reports")
)

type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	ledger *ledger.Ledger
}

// loadConfig reads the config file, using defaults when it does not exist.
func loadConfig(path, env string) (*config.Config, error) {
	if env != "" {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", env, err)
		}
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func factoryOptions(cfg *config.Config, logger *logrus.Logger) quotes.Options {
	r := cfg.Resilience
	return quotes.Options{
		Logger: logger,
		Retry: retry.Config{
			MaxRetries:     r.MaxRetries,
			InitialBackoff: r.InitialBackoff,
			MaxBackoff:     r.MaxBackoff,
			Timeout:        cfg.Provider.Timeout,
		},
		Breaker: quotes.BreakerSettings{
			MaxRequests:  r.BreakerMaxRequests,
			Interval:     r.BreakerInterval,
			Timeout:      r.BreakerTimeout,
			MinRequests:  r.BreakerMinRequests,
			FailureRatio: r.BreakerFailureRatio,
		},
		AlphaVantageURL: cfg.Provider.AlphaVantageURL,
		AlpacaDataURL:   cfg.Provider.AlpacaDataURL,
		TradierURL:      cfg.Provider.TradierURL,
		GeminiModel:     cfg.Provider.GeminiModel,
	}
}

// newApp wires the ledger to the configured storage and quote providers.
func newApp(cfg *config.Config) (*app, error) {
	logger := cfg.NewLogger()
	logger.SetOutput(os.Stderr)

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}

	factory := quotes.NewFactory(factoryOptions(cfg, logger))
	l := ledger.New(storage.NewStore(kv, logger), factory, logger, ledger.Config{
		Location: cfg.Location(),
		Fallback: cfg.ProviderSettings(),
	})
	return &app{cfg: cfg, logger: logger, ledger: l}, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close storage")
	}
}

func printMarkdown(md string) {
	out, err := report.Render(md, *width)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
