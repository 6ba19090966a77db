package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/quotes"
	"github.com/eddiefleurent/options_tracker/internal/storage"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

// RefreshResult summarizes one refresh cycle.
type RefreshResult struct {
	Tickers     int                 `json:"tickers"`
	StockQuotes int                 `json:"stockQuotes"`
	OptionMarks int                 `json:"optionMarks"`
	Triggered   []models.PriceAlert `json:"triggered"`
	// Snapshot is true when today's unrealized P/L was written to the history.
	Snapshot bool `json:"snapshot"`
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// applyStocks stores the quotes and refreshes watchlist rows for tickers in
// the universe, dropping rows for tickers outside it. It returns the fresh prices by ticker. Caller holds mu.
func (l *Ledger) applyStocks(updates []models.StockPriceUpdate) map[string]float64 {
	inUniverse := l.pruneWatchlist()
	now := l.config.Now()

	fresh := make(map[string]float64, len(updates))
	for _, u := range updates {
		u.Ticker = models.NormalizeTicker(u.Ticker)
		if u.Ticker == "" || !finite(u.Price) || !finite(u.PreviousClose) {
			l.logger.WithField("ticker", u.Ticker).Debug("Skipping unusable stock quote")
			continue
		}
		l.quotes[u.Ticker] = models.StockQuote{
			Ticker:        u.Ticker,
			Price:         u.Price,
			PreviousClose: u.PreviousClose,
			UpdatedAt:     now,
		}
		fresh[u.Ticker] = u.Price
		if inUniverse[u.Ticker] {
			l.watchlist[u.Ticker] = models.NewWatchlistItem(u)
		}
	}
	return fresh
}

// applyOptions sets the mark of matching legs and returns how many changed. Caller holds mu.
func (l *Ledger) applyOptions(updates []models.OptionPriceUpdate) int {
	marks := make(map[string]float64, len(updates))
	for _, u := range updates {
		if finite(u.CurrentPrice) {
			marks[u.ID] = u.CurrentPrice
		}
	}

	applied := 0
	for i := range l.open {
		for j := range l.open[i].Legs {
			leg := &l.open[i].Legs[j]
			if mark, ok := marks[leg.ID]; ok {
				leg.CurrentPrice = mark
				applied++
			}
		}
	}
	return applied
}

// evaluateAlerts fires active alerts whose ticker has a fresh price and queues
// them as notifications. Caller holds mu.
func (l *Ledger) evaluateAlerts(fresh map[string]float64) []models.PriceAlert {
	now := l.config.Now()
	var fired []models.PriceAlert
	for i := range l.alerts {
		a := &l.alerts[i]
		price, ok := fresh[a.Ticker]
		if !ok || !a.CheckCondition(price) {
			continue
		}
		if err := a.Trigger(now); err != nil {
			l.logger.WithError(err).Warn("Alert could not be triggered")
			continue
		}
		l.logger.WithFields(logrus.Fields{
			"alert":     a.ID,
			"ticker":    a.Ticker,
			"price":     price,
			"target":    a.TargetPrice,
			"condition": a.Condition,
		}).Info("Price alert triggered")
		fired = append(fired, a.Clone())
	}
	l.notifications = append(l.notifications, cloneAlerts(fired)...)
	return fired
}

// snapshotHistory overwrites today's unrealized P/L. Nothing is written when
// no strategy is open and today has no entry yet. Caller holds mu.
func (l *Ledger) snapshotHistory() bool {
	today := l.today()
	exists := false
	for _, h := range l.history {
		if h.Date == today {
			exists = true
			break
		}
	}
	if len(l.open) == 0 && !exists {
		return false
	}
	l.history = views.UpsertUnrealized(l.history, today, views.UnrealizedPL(l.open))
	return true
}

// ApplyStockPrices merges quotes into the ledger and returns the tickers that were applied.
func (l *Ledger) ApplyStockPrices(updates []models.StockPriceUpdate) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := l.applyStocks(updates)
	out := make([]string, 0, len(fresh))
	for t := range fresh {
		out = append(out, t)
	}
	return out
}

// ApplyOptionPrices sets leg marks by id. P/L is not touched and unknown ids are ignored.
func (l *Ledger) ApplyOptionPrices(updates []models.OptionPriceUpdate) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.applyOptions(updates)
	if n == 0 {
		return 0, nil
	}
	return n, l.persist(storage.KeyPositions)
}

// EvaluateAlerts checks active alerts against the given quotes and returns
// the alerts that fired.
func (l *Ledger) EvaluateAlerts(updates []models.StockPriceUpdate) ([]models.PriceAlert, error) {
	fresh := make(map[string]float64, len(updates))
	for _, u := range updates {
		if finite(u.Price) {
			fresh[models.NormalizeTicker(u.Ticker)] = u.Price
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fired := l.evaluateAlerts(fresh)
	if len(fired) == 0 {
		return nil, nil
	}
	return fired, l.persist(storage.KeyPriceAlerts)
}

// Quote returns the latest stock quote for ticker.
func (l *Ledger) Quote(ticker string) (models.StockQuote, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q, ok := l.quotes[models.NormalizeTicker(ticker)]
	return q, ok
}

// Refresh fetches quotes for the universe and marks for every open leg, then
// applies them. Nothing is applied unless both fetches succeed. The lock is
// not held during the fetch, so edits made meanwhile may be overwritten.
func (l *Ledger) Refresh(ctx context.Context) (RefreshResult, error) {
	l.mu.RLock()
	tickers := l.universe()
	var legs []models.OptionLeg
	for i := range l.open {
		legs = append(legs, l.open[i].Legs...)
	}
	settings := l.effectiveSettings()
	l.mu.RUnlock()

	if len(tickers) == 0 {
		return RefreshResult{}, nil
	}
	if !settings.Configured() {
		return RefreshResult{}, &ConfigError{Err: quotes.ErrMissingCredentials}
	}
	if l.factory == nil {
		return RefreshResult{}, &ConfigError{Err: errors.New("no quote provider factory")}
	}

	provider, err := l.factory.New(settings)
	if err != nil {
		if errors.Is(err, quotes.ErrMissingCredentials) {
			return RefreshResult{}, &ConfigError{Err: err}
		}
		return RefreshResult{}, &RefreshError{Err: err}
	}

	log := l.logger.WithFields(logrus.Fields{"provider": settings.Provider, "tickers": len(tickers), "legs": len(legs)})
	log.Debug("Refreshing prices")

	stocks, err := provider.FetchStockPrices(ctx, tickers)
	if err != nil {
		log.WithError(err).Error("Stock price fetch failed")
		return RefreshResult{}, &RefreshError{Err: err}
	}
	var marks []models.OptionPriceUpdate
	if len(legs) > 0 {
		marks, err = provider.FetchOptionPrices(ctx, legs)
		if err != nil {
			log.WithError(err).Error("Option price fetch failed")
			return RefreshResult{}, &RefreshError{Err: err}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res := RefreshResult{Tickers: len(tickers)}
	fresh := l.applyStocks(stocks)
	res.StockQuotes = len(fresh)
	res.Triggered = l.evaluateAlerts(fresh)
	res.OptionMarks = l.applyOptions(marks)
	res.Snapshot = l.snapshotHistory()

	keys := []string{storage.KeyPositions}
	if len(res.Triggered) > 0 {
		keys = append(keys, storage.KeyPriceAlerts)
	}
	if res.Snapshot {
		keys = append(keys, storage.KeyPLHistory)
	}

	log.WithFields(logrus.Fields{
		"quotes":    res.StockQuotes,
		"marks":     res.OptionMarks,
		"triggered": len(res.Triggered),
	}).Info("Prices refreshed")

	if err := l.persist(keys...); err != nil {
		return res, fmt.Errorf("saving refreshed prices: %w", err)
	}
	return res, nil
}

// effectiveSettings prefers stored settings and falls back to the configured
// ones while the stored settings lack credentials. Caller holds mu.
func (l *Ledger) effectiveSettings() models.ProviderSettings {
	if l.settings.Configured() || !l.config.Fallback.Configured() {
		return l.settings
	}
	return l.config.Fallback
}

// Settings returns the provider settings a refresh would use.
func (l *Ledger) Settings() models.ProviderSettings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effectiveSettings()
}

// SetProviderSettings stores the provider selection and keys.
func (l *Ledger) SetProviderSettings(settings models.ProviderSettings) error {
	if settings.Provider == "" {
		settings.Provider = models.ProviderAlphaVantage
	}
	if !settings.Provider.Valid() {
		return invalid(fmt.Errorf("unknown provider %q", settings.Provider))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.settings = settings
	l.logger.WithFields(logrus.Fields{
		"provider":   settings.Provider,
		"configured": settings.Configured(),
	}).Info("Provider settings saved")
	return l.persist(storage.KeyAPIProvider, storage.KeyAPIKeys)
}
