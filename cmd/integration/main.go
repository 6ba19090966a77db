// Command integration runs the tracker end to end against the configured
// quote provider. Ledger state lives in throwaway storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/config"
	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/quotes"
	"github.com/eddiefleurent/options_tracker/internal/retry"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

const symbol = "SPY"

type suite struct {
	cfg      *config.Config
	logger   *logrus.Logger
	factory  *quotes.Factory
	provider quotes.Provider
	spot     float64
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	fmt.Println("=== Options Tracker - End-to-End Integration Test ===")
	fmt.Println()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.NewLogger()
	settings := cfg.ProviderSettings()
	if !settings.Configured() {
		logger.Fatalf("Provider %s has no API keys; set them in %s", settings.Provider, *configPath)
	}

	r := cfg.Resilience
	factory := quotes.NewFactory(quotes.Options{
		Logger: logger,
		Retry: retry.Config{
			MaxRetries:     r.MaxRetries,
			InitialBackoff: r.InitialBackoff,
			MaxBackoff:     r.MaxBackoff,
			Timeout:        cfg.Provider.Timeout,
		},
		AlphaVantageURL: cfg.Provider.AlphaVantageURL,
		AlpacaDataURL:   cfg.Provider.AlpacaDataURL,
		TradierURL:      cfg.Provider.TradierURL,
		GeminiModel:     cfg.Provider.GeminiModel,
	})
	provider, err := factory.New(settings)
	if err != nil {
		logger.Fatalf("Failed to create provider: %v", err)
	}

	fmt.Printf("Provider: %s\n", settings.Provider)
	fmt.Println()

	s := &suite{cfg: cfg, logger: logger, factory: factory, provider: provider}
	s.run()
}

func (s *suite) run() {
	tests := []struct {
		name string
		run  func() bool
	}{
		{"Stock Quotes", s.testStockQuotes},
		{"Option Marks", s.testOptionMarks},
		{"Ledger Round Trip", s.testLedgerRoundTrip},
		{"SQLite Persistence", s.testSQLitePersistence},
	}

	passed := 0
	for i, tt := range tests {
		title := fmt.Sprintf("Test %d: %s", i+1, tt.name)
		fmt.Println(title)
		for range title {
			fmt.Print("=")
		}
		fmt.Println()
		if tt.run() {
			passed++
			fmt.Println("PASSED")
		} else {
			fmt.Println("FAILED")
		}
		fmt.Println()
	}

	fmt.Println("=== Integration Test Results ===")
	fmt.Printf("Tests Passed: %d/%d\n", passed, len(tests))
	if passed != len(tests) {
		fmt.Printf("%d test(s) failed\n", len(tests)-passed)
		os.Exit(1)
	}
}

func (s *suite) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (s *suite) testStockQuotes() bool {
	ctx, cancel := s.context()
	defer cancel()

	updates, err := s.provider.FetchStockPrices(ctx, []string{symbol})
	if err != nil {
		s.logger.Errorf("Stock quote fetch failed: %v", err)
		return false
	}
	for _, u := range updates {
		if u.Ticker == symbol {
			s.spot = u.Price
			s.logger.Infof("%s last $%.2f, previous close $%.2f", u.Ticker, u.Price, u.PreviousClose)
			return u.Price > 0
		}
	}
	s.logger.Errorf("No quote for %s", symbol)
	return false
}

// nextMonthlyExpiration returns the third Friday of the month after now.
func nextMonthlyExpiration(now time.Time) string {
	first := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14).Format(models.DateLayout)
}

func (s *suite) testLeg(id string) models.OptionLeg {
	strike := 500.0
	if s.spot > 0 {
		strike = math.Round(s.spot/5) * 5
	}
	return models.OptionLeg{
		ID:            id,
		Ticker:        symbol,
		Type:          models.OptionTypePut,
		Action:        models.ActionSell,
		Strike:        strike,
		Expiration:    nextMonthlyExpiration(time.Now()),
		PurchasePrice: 1,
		Contracts:     1,
	}
}

func (s *suite) testOptionMarks() bool {
	ctx, cancel := s.context()
	defer cancel()

	leg := s.testLeg("integration-leg")
	marks, err := s.provider.FetchOptionPrices(ctx, []models.OptionLeg{leg})
	if err != nil {
		s.logger.Errorf("Option mark fetch failed: %v", err)
		return false
	}
	if len(marks) == 0 {
		s.logger.Warnf("No mark for %s %.0f %s %s", leg.Ticker, leg.Strike, leg.Type, leg.Expiration)
		return false
	}
	s.logger.Infof("%s %.0f %s %s mark $%.2f", leg.Ticker, leg.Strike, leg.Type, leg.Expiration, marks[0].CurrentPrice)
	return marks[0].ID == leg.ID && marks[0].CurrentPrice >= 0
}

func (s *suite) newLedger(kv storage.KV) *ledger.Ledger {
	return ledger.New(storage.NewStore(kv, s.logger), s.factory, s.logger, ledger.Config{
		Location: s.cfg.Location(),
		Fallback: s.cfg.ProviderSettings(),
	})
}

func (s *suite) openTestStrategy(l *ledger.Ledger) (models.OptionStrategy, error) {
	acc, err := l.AddAccount("Integration", "paper")
	if err != nil {
		return models.OptionStrategy{}, err
	}
	leg := s.testLeg("")
	return l.OpenStrategy(models.StrategyInput{
		Name:      "Integration short put",
		AccountID: acc.ID,
		OpenDate:  time.Now().In(s.cfg.Location()).Format(models.DateLayout),
		Legs: []models.LegInput{{
			Ticker:        leg.Ticker,
			Type:          leg.Type,
			Action:        leg.Action,
			Strike:        leg.Strike,
			Expiration:    leg.Expiration,
			PurchasePrice: leg.PurchasePrice,
			Contracts:     leg.Contracts,
		}},
	})
}

func (s *suite) testLedgerRoundTrip() bool {
	l := s.newLedger(storage.NewMemoryKV())
	defer l.Close()

	strategy, err := s.openTestStrategy(l)
	if err != nil {
		s.logger.Errorf("Failed to open strategy: %v", err)
		return false
	}
	// Far above spot so the alert fires on the first refresh.
	if _, err := l.AddAlert(symbol, 1e6, models.ConditionBelow); err != nil {
		s.logger.Errorf("Failed to add alert: %v", err)
		return false
	}

	ctx, cancel := s.context()
	defer cancel()
	res, err := l.Refresh(ctx)
	if err != nil {
		s.logger.Errorf("Refresh failed: %v", err)
		return false
	}
	s.logger.Infof("Refresh: %d quotes, %d marks, %d alerts", res.StockQuotes, res.OptionMarks, len(res.Triggered))

	closed, err := l.CloseStrategy(strategy.ID, []ledger.ClosingLeg{{LegID: strategy.Legs[0].ID, ClosingPrice: 0.5}})
	if err != nil {
		s.logger.Errorf("Close failed: %v", err)
		return false
	}
	s.logger.Infof("Realized $%.2f", closed.Strategy.TotalPL)

	return res.StockQuotes == 1 && len(res.Triggered) == 1 && closed.Strategy.TotalPL == 50
}

func (s *suite) testSQLitePersistence() bool {
	dir, err := os.MkdirTemp("", "tracker-integration")
	if err != nil {
		s.logger.Errorf("Failed to create temp dir: %v", err)
		return false
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warnf("Failed to clean up %s: %v", dir, err)
		}
	}()
	path := filepath.Join(dir, "tracker.db")

	kv, err := storage.NewSQLiteKV(path)
	if err != nil {
		s.logger.Errorf("Failed to open sqlite: %v", err)
		return false
	}
	l := s.newLedger(kv)
	strategy, err := s.openTestStrategy(l)
	if closeErr := l.Close(); closeErr != nil {
		s.logger.Warnf("Failed to close sqlite: %v", closeErr)
	}
	if err != nil {
		s.logger.Errorf("Failed to open strategy: %v", err)
		return false
	}

	kv, err = storage.NewSQLiteKV(path)
	if err != nil {
		s.logger.Errorf("Failed to reopen sqlite: %v", err)
		return false
	}
	reopened := s.newLedger(kv)
	defer reopened.Close()

	got, ok := reopened.Strategy(strategy.ID)
	if !ok {
		s.logger.Errorf("Strategy %s missing after reopen", strategy.ID)
		return false
	}
	s.logger.Infof("Reloaded %q with %d leg(s)", got.Name, len(got.Legs))
	return got.TotalPL == strategy.TotalPL
}
