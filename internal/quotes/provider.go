// Package quotes fetches underlying stock quotes and option marks from the
// configured market-data provider.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/retry"
)

// Provider returns quotes for tickers and marks for option legs.
//
// A provider fails the whole batch on authentication or configuration errors
// and omits individual symbols it cannot resolve.
type Provider interface {
	FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error)
	FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error)
}

var (
	// ErrMissingCredentials is returned when the selected provider lacks API keys
	ErrMissingCredentials = errors.New("provider credentials are missing")
	// ErrUnauthorized is returned when the provider rejects the credentials
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrRateLimited is returned when the provider throttles the caller
	ErrRateLimited = errors.New("provider rate limit reached")
)

// Options configures provider construction.
type Options struct {
	Logger          *logrus.Logger
	HTTPClient      *http.Client
	Retry           retry.Config
	Breaker         BreakerSettings
	AlphaVantageURL string
	AlpacaDataURL   string
	TradierURL      string
	GeminiModel     string
	// Concurrency bounds per-symbol and per-leg calls.
	Concurrency int
	Now         func() time.Time
}

const (
	defaultAlphaVantageURL = "https://www.alphavantage.co"
	defaultAlpacaDataURL   = "https://data.alpaca.markets"
	defaultTradierURL      = "https://api.tradier.com/v1"
	defaultConcurrency     = 4
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.AlphaVantageURL == "" {
		o.AlphaVantageURL = defaultAlphaVantageURL
	}
	if o.AlpacaDataURL == "" {
		o.AlpacaDataURL = defaultAlpacaDataURL
	}
	if o.TradierURL == "" {
		o.TradierURL = defaultTradierURL
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Breaker == (BreakerSettings{}) {
		o.Breaker = DefaultBreakerSettings
	}
	return o
}

// Factory builds providers from settings. Circuit breakers are kept per
// provider name so they survive across refreshes.
type Factory struct {
	opts      Options
	simulator *Simulator

	mu       sync.Mutex
	breakers map[models.ProviderName]*gobreaker.CircuitBreaker
}

// NewFactory creates a factory with the given options.
func NewFactory(opts Options) *Factory {
	opts = opts.withDefaults()
	return &Factory{
		opts:      opts,
		simulator: NewSimulator(opts.Now),
		breakers:  make(map[models.ProviderName]*gobreaker.CircuitBreaker),
	}
}

// New builds the provider selected by settings, wrapped with retry and a circuit breaker.
func (f *Factory) New(settings models.ProviderSettings) (Provider, error) {
	name := settings.Provider
	if name == "" {
		name = models.ProviderAlphaVantage
	}

	var inner Provider
	switch name {
	case models.ProviderSimulated:
		inner = f.simulator
	case models.ProviderAlphaVantage:
		if settings.Keys.AlphaVantage == "" {
			return nil, fmt.Errorf("alpha vantage: %w", ErrMissingCredentials)
		}
		var estimator OptionEstimator
		if settings.Keys.Gemini != "" {
			estimator = NewGeminiEstimator(settings.Keys.Gemini, f.opts.GeminiModel, f.opts.Now)
		}
		inner = NewAlphaVantage(settings.Keys.AlphaVantage, f.opts, estimator)
	case models.ProviderAlpaca:
		if settings.Keys.AlpacaKey == "" || settings.Keys.AlpacaSecret == "" {
			return nil, fmt.Errorf("alpaca: %w", ErrMissingCredentials)
		}
		inner = NewAlpaca(settings.Keys.AlpacaKey, settings.Keys.AlpacaSecret, f.opts)
	case models.ProviderTradier:
		if settings.Keys.Tradier == "" {
			return nil, fmt.Errorf("tradier: %w", ErrMissingCredentials)
		}
		inner = NewTradier(settings.Keys.Tradier, f.opts)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}

	return newResilient(string(name), inner, f.breaker(name), retry.NewClient(f.opts.Logger, f.opts.Retry)), nil
}

func (f *Factory) breaker(name models.ProviderName) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[name]; ok {
		return cb
	}
	cb := newCircuitBreaker(string(name), f.opts.Breaker, f.opts.Logger)
	f.breakers[name] = cb
	return cb
}

// New builds a single provider without sharing breaker state.
func New(settings models.ProviderSettings, opts Options) (Provider, error) {
	return NewFactory(opts).New(settings)
}
