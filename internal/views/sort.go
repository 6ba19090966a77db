// Package views holds the pure derived-data functions behind the portfolio tables:
// sorting, account filtering, P/L aggregation and history-series maintenance.
package views

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// SortKey names a sortable column.
type SortKey string

// Strategy-level keys
const (
	KeyID         SortKey = "id"
	KeyName       SortKey = "name"
	KeyTotalPL    SortKey = "totalPL"
	KeyAccountID  SortKey = "accountId"
	KeyOpenDate   SortKey = "openDate"
	KeyCloseDate  SortKey = "closeDate"
	KeyRealizedPL SortKey = "realizedPL"
)

// Leg-level keys, only meaningful for single-leg strategies in the open table
const (
	KeyTicker        SortKey = "ticker"
	KeyAction        SortKey = "action"
	KeyType          SortKey = "type"
	KeyStrike        SortKey = "strike"
	KeyExpiration    SortKey = "expiration"
	KeyContracts     SortKey = "contracts"
	KeyPurchasePrice SortKey = "purchasePrice"
)

// KeyMargin sorts open strategies by estimated margin requirement.
const KeyMargin SortKey = "margin"

// SortConfig is the active sort of a table. A nil *SortConfig means unsorted.
type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// Toggle returns the config after the user selects key: the same key flips
// direction, a new key starts ascending.
func Toggle(prev *SortConfig, key SortKey) SortConfig {
	if prev != nil && prev.Key == key && prev.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}

type valueKind int

const (
	kindNone valueKind = iota
	kindString
	kindNumber
	kindDate
)

type sortValue struct {
	kind valueKind
	str  string
	num  float64
}

func str(s string) sortValue { return sortValue{kind: kindString, str: s} }
func num(n float64) sortValue { return sortValue{kind: kindNumber, num: n} }
func date(s string) sortValue { return sortValue{kind: kindDate, str: s} }
func none() sortValue { return sortValue{} }
func isDateKey(key SortKey) bool { return key == KeyOpenDate || key == KeyCloseDate || key == KeyExpiration }
func (v sortValue) missing() bool { return v.kind == kindNone }

func strategyValue(s *models.OptionStrategy, key SortKey) sortValue {
	switch key {
	case KeyID:
		return str(s.ID)
	case KeyName:
		return str(s.Name)
	case KeyTotalPL:
		return num(s.TotalPL)
	case KeyAccountID:
		return str(s.AccountID)
	case KeyOpenDate:
		return date(s.OpenDate)
	case KeyCloseDate:
		if s.CloseDate == "" {
			return none()
		}
		return date(s.CloseDate)
	case KeyRealizedPL:
		if s.RealizedPL == nil {
			return none()
		}
		return num(*s.RealizedPL)
	}
	return none()
}

func legValue(leg *models.OptionLeg, key SortKey) sortValue {
	switch key {
	case KeyTicker:
		return str(leg.Ticker)
	case KeyAction:
		return str(string(leg.Action))
	case KeyType:
		return str(string(leg.Type))
	case KeyStrike:
		return num(leg.Strike)
	case KeyExpiration:
		return date(leg.Expiration)
	case KeyContracts:
		return num(float64(leg.Contracts))
	case KeyPurchasePrice:
		return num(leg.PurchasePrice)
	}
	return none()
}

// openValue resolves a key for the open table: name/totalPL/openDate and margin
// on the strategy, leg columns only when the strategy has exactly one leg.
func openValue(s *models.OptionStrategy, key SortKey) sortValue {
	switch key {
	case KeyName, KeyTotalPL, KeyOpenDate:
		return strategyValue(s, key)
	case KeyMargin:
		return num(models.EstimateMargin(*s))
	}
	if len(s.Legs) == 1 {
		return legValue(&s.Legs[0], key)
	}
	return none()
}

type comparer struct {
	collator *collate.Collator
}

func newComparer() *comparer {
	return &comparer{collator: collate.New(language.English)}
}

func (c *comparer) compare(key SortKey, a, b sortValue) int {
	if a.missing() || b.missing() {
		return 0
	}
	if isDateKey(key) || a.kind == kindDate || b.kind == kindDate {
		ta, errA := time.Parse(models.DateLayout, a.str)
		tb, errB := time.Parse(models.DateLayout, b.str)
		if errA != nil || errB != nil {
			return 0
		}
		return ta.Compare(tb)
	}
	if a.kind == kindString && b.kind == kindString {
		return c.collator.CompareString(a.str, b.str)
	}
	if a.kind == kindNumber && b.kind == kindNumber {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
	}
	return 0
}

func sortBy(list []models.OptionStrategy, cfg *SortConfig, value func(*models.OptionStrategy, SortKey) sortValue) []models.OptionStrategy {
	out := append([]models.OptionStrategy(nil), list...)
	if cfg == nil {
		return out
	}
	c := newComparer()
	sort.SliceStable(out, func(i, j int) bool {
		cmp := c.compare(cfg.Key, value(&out[i], cfg.Key), value(&out[j], cfg.Key))
		if cfg.Direction == Descending {
			cmp = -cmp
		}
		return cmp < 0
	})
	return out
}

// SortOpen returns a sorted copy of open strategies. Unknown or incomparable
// keys leave the order unchanged.
func SortOpen(list []models.OptionStrategy, cfg *SortConfig) []models.OptionStrategy {
	return sortBy(list, cfg, openValue)
}

// SortClosed returns a sorted copy of closed strategies using strategy-level keys.
func SortClosed(list []models.OptionStrategy, cfg *SortConfig) []models.OptionStrategy {
	return sortBy(list, cfg, strategyValue)
}

// AllAccounts is the account filter value that passes every record.
const AllAccounts = "all"

// FilterByAccount keeps strategies of the selected account; "all" or "" keeps everything.
func FilterByAccount(list []models.OptionStrategy, accountID string) []models.OptionStrategy {
	if accountID == AllAccounts || accountID == "" {
		return append([]models.OptionStrategy(nil), list...)
	}
	out := make([]models.OptionStrategy, 0, len(list))
	for _, s := range list {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out
}
