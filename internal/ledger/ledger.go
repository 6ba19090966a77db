// Package ledger owns the portfolio state: accounts, open and closed
// strategies, the manual watchlist, price alerts and the daily P/L history.
// Every mutation goes through a Ledger method and is saved to storage.
package ledger

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/quotes"
	"github.com/eddiefleurent/options_tracker/internal/storage"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

// ProviderFactory builds a quote provider for the current settings.
type ProviderFactory interface {
	New(settings models.ProviderSettings) (quotes.Provider, error)
}

// Config contains configuration for the ledger.
type Config struct {
	// Location is the calendar used for close dates and history entries.
	Location *time.Location
	Now      func() time.Time
	// Fallback settings are used while the stored settings are not configured.
	Fallback models.ProviderSettings
}

// DefaultConfig uses UTC and the wall clock.
var DefaultConfig = Config{
	Location: time.UTC,
	Now:      time.Now,
}

// Ledger is the single owner of the portfolio state. It is safe for concurrent use.
type Ledger struct {
	store   *storage.Store
	factory ProviderFactory
	logger  *logrus.Logger
	config  Config

	mu              sync.RWMutex
	accounts        []models.Account
	open            []models.OptionStrategy
	closed          []models.OptionStrategy
	history         []models.PLHistoryData
	manualWatchlist []string
	alerts          []models.PriceAlert
	notifications   []models.PriceAlert
	quotes          map[string]models.StockQuote
	watchlist       map[string]models.WatchlistItem
	settings        models.ProviderSettings
	openSort        *views.SortConfig
	closedSort      *views.SortConfig
}

// New loads the persisted state from store.
func New(store *storage.Store, factory ProviderFactory, logger *logrus.Logger, config ...Config) *Ledger {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Location == nil {
		cfg.Location = DefaultConfig.Location
	}
	if cfg.Now == nil {
		cfg.Now = DefaultConfig.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if store == nil {
		panic("ledger.New: store must not be nil")
	}

	l := &Ledger{
		store:     store,
		factory:   factory,
		logger:    logger,
		config:    cfg,
		quotes:    make(map[string]models.StockQuote),
		watchlist: make(map[string]models.WatchlistItem),
	}
	l.load(store.LoadState())
	return l
}

func (l *Ledger) load(st storage.State) {
	l.accounts = st.Accounts
	l.open = st.Positions
	l.closed = st.ClosedPositions
	l.history = views.NormalizeHistory(st.PLHistory)
	l.alerts = st.PriceAlerts
	l.settings = st.Settings

	l.manualWatchlist = make([]string, 0, len(st.ManualWatchlist))
	for _, t := range st.ManualWatchlist {
		if t = models.NormalizeTicker(t); t != "" && !contains(l.manualWatchlist, t) {
			l.manualWatchlist = append(l.manualWatchlist, t)
		}
	}

	l.logger.WithFields(logrus.Fields{
		"accounts": len(l.accounts),
		"open":     len(l.open),
		"closed":   len(l.closed),
		"alerts":   len(l.alerts),
	}).Info("Ledger state loaded")
}

// Close releases the underlying storage.
func (l *Ledger) Close() error {
	return l.store.Close()
}

func (l *Ledger) now() time.Time {
	return l.config.Now().In(l.config.Location)
}

func (l *Ledger) today() string {
	return l.now().Format(models.DateLayout)
}

// persist writes the named keys from the current state. Caller holds mu.
func (l *Ledger) persist(keys ...string) error {
	var errs []error
	for _, key := range keys {
		var err error
		switch key {
		case storage.KeyAccounts:
			err = l.store.Save(key, l.accounts)
		case storage.KeyPositions:
			err = l.store.Save(key, l.open)
		case storage.KeyClosedPositions:
			err = l.store.Save(key, l.closed)
		case storage.KeyPLHistory:
			err = l.store.Save(key, l.history)
		case storage.KeyManualWatchlist:
			err = l.store.Save(key, l.manualWatchlist)
		case storage.KeyPriceAlerts:
			err = l.store.Save(key, l.alerts)
		case storage.KeyAPIKeys:
			err = l.store.Save(key, l.settings.Keys)
		case storage.KeyAPIProvider:
			err = l.store.SaveProvider(l.settings.Provider)
		}
		if err != nil {
			l.logger.WithError(err).WithField("key", key).Error("Failed to persist ledger state")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openTickers is the set of tickers held by open strategies. Caller holds mu.
func (l *Ledger) openTickers() map[string]struct{} {
	out := make(map[string]struct{})
	for i := range l.open {
		for _, t := range l.open[i].Tickers() {
			out[t] = struct{}{}
		}
	}
	return out
}

// universe is every ticker that needs a quote, sorted. Caller holds mu.
func (l *Ledger) universe() []string {
	set := l.openTickers()
	for _, t := range l.manualWatchlist {
		set[t] = struct{}{}
	}
	for _, a := range l.alerts {
		set[a.Ticker] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// pruneWatchlist drops quote rows whose ticker left the universe and returns
// the universe as a set. Caller holds mu.
func (l *Ledger) pruneWatchlist() map[string]bool {
	inUniverse := make(map[string]bool)
	for _, t := range l.universe() {
		inUniverse[t] = true
	}
	for t := range l.watchlist {
		if !inUniverse[t] {
			delete(l.watchlist, t)
		}
	}
	return inUniverse
}

// Universe returns open-position tickers, the manual watchlist and alert tickers, sorted.
func (l *Ledger) Universe() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.universe()
}

func (l *Ledger) indexOfOpen(id string) int {
	for i := range l.open {
		if l.open[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) hasAccount(id string) bool {
	for _, a := range l.accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneStrategies(list []models.OptionStrategy) []models.OptionStrategy {
	out := make([]models.OptionStrategy, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

func cloneAlerts(list []models.PriceAlert) []models.PriceAlert {
	out := make([]models.PriceAlert, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}
