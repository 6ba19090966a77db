package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

// ManualWatchlist returns the user's watched tickers in insertion order.
func (l *Ledger) ManualWatchlist() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.manualWatchlist...)
}

// Watchlist returns the derived quote rows, sorted by ticker.
func (l *Ledger) Watchlist() []models.WatchlistItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.WatchlistItem, 0, len(l.watchlist))
	for _, item := range l.watchlist {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// AddToWatchlist adds ticker to the manual watchlist. It reports false when
// the ticker is empty, already watched or held in an open strategy.
func (l *Ledger) AddToWatchlist(ticker string) (bool, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if contains(l.manualWatchlist, ticker) {
		return false, nil
	}
	if _, held := l.openTickers()[ticker]; held {
		return false, nil
	}
	l.manualWatchlist = append(l.manualWatchlist, ticker)
	l.logger.WithField("ticker", ticker).Debug("Ticker watched")
	return true, l.persist(storage.KeyManualWatchlist)
}

// RemoveFromWatchlist drops ticker from the manual watchlist. Its quote row
// stays while an open strategy or an alert still covers it.
func (l *Ledger) RemoveFromWatchlist(ticker string) error {
	ticker = models.NormalizeTicker(ticker)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.dropFromWatchlist([]string{ticker})
	l.pruneWatchlist()
	return l.persist(storage.KeyManualWatchlist)
}

// dropFromWatchlist removes tickers from the manual watchlist and reports
// whether anything changed. Caller holds mu.
func (l *Ledger) dropFromWatchlist(tickers []string) bool {
	drop := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		drop[t] = struct{}{}
	}
	kept := make([]string, 0, len(l.manualWatchlist))
	for _, t := range l.manualWatchlist {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	changed := len(kept) != len(l.manualWatchlist)
	l.manualWatchlist = kept
	return changed
}

// Alerts returns a copy of every alert, active and triggered.
func (l *Ledger) Alerts() []models.PriceAlert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAlerts(l.alerts)
}

// AddAlert creates an active alert on ticker.
func (l *Ledger) AddAlert(ticker string, targetPrice float64, condition models.AlertCondition) (models.PriceAlert, error) {
	ticker = models.NormalizeTicker(ticker)
	switch {
	case ticker == "":
		return models.PriceAlert{}, invalid(fmt.Errorf("alert ticker is required"))
	case targetPrice <= 0 || math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0):
		return models.PriceAlert{}, invalid(fmt.Errorf("alert target price must be > 0 (got %v)", targetPrice))
	case !condition.Valid():
		return models.PriceAlert{}, invalid(fmt.Errorf("alert condition must be above or below (got %q)", condition))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	alert := models.PriceAlert{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		TargetPrice: targetPrice,
		Condition:   condition,
		Status:      models.AlertActive,
		CreatedAt:   l.config.Now().UTC(),
	}
	l.alerts = append(l.alerts, alert)
	l.logger.WithFields(logrus.Fields{
		"alert":     alert.ID,
		"ticker":    ticker,
		"target":    targetPrice,
		"condition": condition,
	}).Info("Price alert added")
	return alert.Clone(), l.persist(storage.KeyPriceAlerts)
}

// DeleteAlert removes an alert in any status.
func (l *Ledger) DeleteAlert(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.alerts {
		if l.alerts[i].ID == id {
			l.alerts = append(l.alerts[:i:i], l.alerts[i+1:]...)
			l.pruneWatchlist()
			return l.persist(storage.KeyPriceAlerts)
		}
	}
	return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
}

// Notifications returns the triggered alerts not yet dismissed, oldest first.
func (l *Ledger) Notifications() []models.PriceAlert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAlerts(l.notifications)
}

// DismissNotification removes a notification. The alert itself stays triggered.
func (l *Ledger) DismissNotification(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.notifications {
		if l.notifications[i].ID == id {
			l.notifications = append(l.notifications[:i:i], l.notifications[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
}
