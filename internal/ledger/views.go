package ledger

import (
	"fmt"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

// Table names the strategy tables that keep their own sort.
type Table string

const (
	TableOpen   Table = "open"
	TableClosed Table = "closed"
)

// Summary is the P/L headline for an account filter and period.
type Summary struct {
	AccountID    string          `json:"accountId"`
	Period       views.Period    `json:"period"`
	Range        views.DateRange `json:"range,omitzero"`
	UnrealizedPL float64         `json:"unrealizedPL"`
	RealizedPL   float64         `json:"realizedPL"`
	OpenCount    int             `json:"openCount"`
	ClosedCount  int             `json:"closedCount"`
}

// OpenStrategies returns open strategies of the account ("all" for every
// account), in the open table's sort order.
func (l *Ledger) OpenStrategies(accountID string) []models.OptionStrategy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return views.SortOpen(views.FilterByAccount(cloneStrategies(l.open), accountID), l.openSort)
}

// ClosedStrategies returns closed strategies of the account, most recently
// closed first unless the closed table is sorted.
func (l *Ledger) ClosedStrategies(accountID string) []models.OptionStrategy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return views.SortClosed(views.FilterByAccount(cloneStrategies(l.closed), accountID), l.closedSort)
}

// Strategy looks up an open or closed strategy by id.
func (l *Ledger) Strategy(id string) (models.OptionStrategy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, list := range [][]models.OptionStrategy{l.open, l.closed} {
		for i := range list {
			if list[i].ID == id {
				return list[i].Clone(), true
			}
		}
	}
	return models.OptionStrategy{}, false
}

// ToggleSort selects key on table and returns the resulting sort.
func (l *Ledger) ToggleSort(table Table, key views.SortKey) (views.SortConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cfg **views.SortConfig
	switch table {
	case TableOpen:
		cfg = &l.openSort
	case TableClosed:
		cfg = &l.closedSort
	default:
		return views.SortConfig{}, invalid(fmt.Errorf("unknown table %q", table))
	}
	next := views.Toggle(*cfg, key)
	*cfg = &next
	return next, nil
}

// SortConfig returns the active sort of table, or nil when unsorted.
func (l *Ledger) SortConfig(table Table) *views.SortConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var cfg *views.SortConfig
	if table == TableOpen {
		cfg = l.openSort
	} else {
		cfg = l.closedSort
	}
	if cfg == nil {
		return nil
	}
	c := *cfg
	return &c
}

// Summary aggregates unrealized P/L over the filtered open strategies and
// realized P/L over the filtered closed strategies in period. custom is only
// used by views.PeriodCustom.
func (l *Ledger) Summary(accountID string, period views.Period, custom views.DateRange) Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	open := views.FilterByAccount(l.open, accountID)
	closed := views.FilterByAccount(l.closed, accountID)
	if accountID == "" {
		accountID = views.AllAccounts
	}

	s := Summary{
		AccountID:    accountID,
		Period:       period,
		UnrealizedPL: views.UnrealizedPL(open),
		RealizedPL:   views.RealizedPL(closed, period, l.now(), custom),
		OpenCount:    len(open),
	}
	if period == views.PeriodCustom {
		s.Range = custom
	}
	for _, c := range closed {
		if views.InPeriod(c.CloseDate, period, l.now(), custom) {
			s.ClosedCount++
		}
	}
	return s
}

// History returns the daily P/L series, oldest first.
func (l *Ledger) History() []models.PLHistoryData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.PLHistoryData{}, l.history...)
}
