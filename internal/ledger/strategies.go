package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/storage"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

// RollInput moves a single-leg strategy to a new strike and expiration.
type RollInput struct {
	NewStrike     float64 `json:"newStrike"`
	NewExpiration string  `json:"newExpiration"`
	RollPremium   float64 `json:"rollPremium"`
}

// ClosingLeg is the exit price of one leg.
type ClosingLeg struct {
	LegID        string  `json:"legId"`
	ClosingPrice float64 `json:"closingPrice"`
}

// CloseResult describes a completed close.
type CloseResult struct {
	Strategy models.OptionStrategy `json:"strategy"`
	// OmittedLegIDs are legs retired with the strategy without a closing price.
	// They contribute nothing to the realized P/L.
	OmittedLegIDs []string `json:"omittedLegIds,omitempty"`
	// WatchlistAdded are tickers handed back to the manual watchlist.
	WatchlistAdded []string `json:"watchlistAdded,omitempty"`
}

func (l *Ledger) validateInput(in models.StrategyInput) error {
	if err := in.Validate(); err != nil {
		return invalid(err)
	}
	if !l.hasAccount(in.AccountID) {
		return invalid(fmt.Errorf("account %s does not exist", in.AccountID))
	}
	return nil
}

// OpenStrategy records a new strategy. Tickers it covers leave the manual watchlist.
func (l *Ledger) OpenStrategy(in models.StrategyInput) (models.OptionStrategy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validateInput(in); err != nil {
		return models.OptionStrategy{}, err
	}

	legs := make([]models.OptionLeg, len(in.Legs))
	for i, leg := range in.Legs {
		legs[i] = models.NewLeg(uuid.NewString(), leg)
	}
	s := models.OptionStrategy{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Legs:      legs,
		TotalPL:   models.SumLegPL(legs),
		AccountID: in.AccountID,
		OpenDate:  in.OpenDate,
	}
	l.open = append(l.open, s)

	keys := []string{storage.KeyPositions}
	if l.dropFromWatchlist(s.Tickers()) {
		keys = append(keys, storage.KeyManualWatchlist)
	}

	l.logger.WithFields(logrus.Fields{
		"strategy": s.ID,
		"name":     s.Name,
		"legs":     len(s.Legs),
		"totalPL":  s.TotalPL,
	}).Info("Strategy opened")

	return s.Clone(), l.persist(keys...)
}

// EditStrategy replaces the legs and metadata of an open strategy. A new leg
// keeps the id of an existing leg with the same ticker, strike and type.
// applied is false when no open strategy has the id.
func (l *Ledger) EditStrategy(id string, in models.StrategyInput) (applied bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfOpen(id)
	if idx < 0 {
		l.logger.WithField("strategy", id).Debug("Edit ignored: strategy not open")
		return false, nil
	}
	if err := l.validateInput(in); err != nil {
		return false, err
	}

	s := &l.open[idx]
	if err := s.TransitionState(models.StateOpen, models.ConditionEdited); err != nil {
		return false, err
	}

	used := make(map[string]bool, len(s.Legs))
	legs := make([]models.OptionLeg, len(in.Legs))
	for i, leg := range in.Legs {
		legID := uuid.NewString()
		ticker := models.NormalizeTicker(leg.Ticker)
		for _, old := range s.Legs {
			if !used[old.ID] && old.Ticker == ticker && old.Strike == leg.Strike && old.Type == leg.Type {
				legID = old.ID
				used[old.ID] = true
				break
			}
		}
		legs[i] = models.NewLeg(legID, leg)
	}

	s.Name = strings.TrimSpace(in.Name)
	s.Legs = legs
	s.TotalPL = models.SumLegPL(legs)
	s.AccountID = in.AccountID
	s.OpenDate = in.OpenDate
	l.pruneWatchlist()

	l.logger.WithFields(logrus.Fields{"strategy": id, "totalPL": s.TotalPL}).Info("Strategy edited")
	return true, l.persist(storage.KeyPositions)
}

// RollStrategy replaces the only leg of a strategy with a leg at a new strike
// and expiration whose cost basis absorbs the roll premium.
func (l *Ledger) RollStrategy(id string, in RollInput) (models.OptionStrategy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfOpen(id)
	if idx < 0 {
		return models.OptionStrategy{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	s := &l.open[idx]
	if len(s.Legs) != 1 {
		return models.OptionStrategy{}, rejected(ErrMultiLegRoll, "strategy %s has %d legs", id, len(s.Legs))
	}
	if in.NewStrike <= 0 || math.IsNaN(in.NewStrike) || math.IsInf(in.NewStrike, 0) {
		return models.OptionStrategy{}, invalid(fmt.Errorf("new strike must be > 0 (got %v)", in.NewStrike))
	}
	if math.IsNaN(in.RollPremium) || math.IsInf(in.RollPremium, 0) {
		return models.OptionStrategy{}, invalid(fmt.Errorf("roll premium must be a number"))
	}
	if _, err := models.ParseDate(in.NewExpiration); err != nil {
		return models.OptionStrategy{}, invalid(fmt.Errorf("new expiration: %w", err))
	}
	if err := s.TransitionState(models.StateOpen, models.ConditionRolled); err != nil {
		return models.OptionStrategy{}, err
	}

	old := s.Legs[0]
	leg := old
	leg.ID = uuid.NewString()
	leg.Strike = in.NewStrike
	leg.Expiration = in.NewExpiration
	leg.PurchasePrice = models.RolledPurchasePrice(old.Action, old.PurchasePrice, in.RollPremium)
	leg.CurrentPrice = 0
	leg.PL = models.EntryPL(leg.Action, leg.PurchasePrice, leg.Contracts)

	s.Name = fmt.Sprintf("%s %s %s (Rolled)", leg.Ticker, strconv.FormatFloat(in.NewStrike, 'f', -1, 64), leg.Type)
	s.Legs = []models.OptionLeg{leg}
	s.TotalPL = leg.PL

	l.logger.WithFields(logrus.Fields{
		"strategy":      id,
		"oldLeg":        old.ID,
		"newLeg":        leg.ID,
		"purchasePrice": leg.PurchasePrice,
	}).Info("Strategy rolled")

	return s.Clone(), l.persist(storage.KeyPositions)
}

// CloseStrategy realizes the P/L of the legs given closing prices and retires
// the whole strategy to the closed collection dated today.
func (l *Ledger) CloseStrategy(id string, closing []ClosingLeg) (CloseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfOpen(id)
	if idx < 0 {
		return CloseResult{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	s := l.open[idx]

	prices := make(map[string]float64, len(closing))
	for _, c := range closing {
		if s.LegByID(c.LegID) == nil {
			return CloseResult{}, rejected(ErrUnknownLeg, "leg %s is not part of strategy %s", c.LegID, id)
		}
		if _, dup := prices[c.LegID]; dup {
			return CloseResult{}, invalid(fmt.Errorf("leg %s is listed twice", c.LegID))
		}
		if c.ClosingPrice < 0 || math.IsNaN(c.ClosingPrice) || math.IsInf(c.ClosingPrice, 0) {
			return CloseResult{}, invalid(fmt.Errorf("leg %s: closing price must be >= 0 (got %v)", c.LegID, c.ClosingPrice))
		}
		prices[c.LegID] = c.ClosingPrice
	}
	if err := s.TransitionState(models.StateClosed, models.ConditionClosed); err != nil {
		return CloseResult{}, err
	}

	realized := decimal.Zero
	var omitted []string
	for _, leg := range s.Legs {
		price, ok := prices[leg.ID]
		if !ok {
			omitted = append(omitted, leg.ID)
			continue
		}
		realized = realized.Add(models.RealizedLegPL(leg, price))
	}
	amount := realized.InexactFloat64()

	closed := s.Clone()
	closed.CloseDate = l.today()
	closed.RealizedPL = &amount
	closed.TotalPL = amount

	l.open = append(l.open[:idx:idx], l.open[idx+1:]...)
	l.closed = append([]models.OptionStrategy{closed}, l.closed...)

	if len(omitted) > 0 {
		l.logger.WithFields(logrus.Fields{
			"strategy": id,
			"legs":     omitted,
		}).Warn("Strategy closed without prices for some legs; they contribute no P/L")
	}

	held := l.openTickers()
	var added []string
	for _, t := range closed.Tickers() {
		if _, ok := held[t]; ok || contains(l.manualWatchlist, t) {
			continue
		}
		l.manualWatchlist = append(l.manualWatchlist, t)
		added = append(added, t)
	}

	keys := []string{storage.KeyPositions, storage.KeyClosedPositions}
	if len(added) > 0 {
		keys = append(keys, storage.KeyManualWatchlist)
	}
	if !realized.IsZero() {
		l.history = views.AddRealized(l.history, closed.CloseDate, amount)
		keys = append(keys, storage.KeyPLHistory)
	}

	l.logger.WithFields(logrus.Fields{
		"strategy":   id,
		"realizedPL": amount,
		"closeDate":  closed.CloseDate,
	}).Info("Strategy closed")

	res := CloseResult{Strategy: closed.Clone(), OmittedLegIDs: omitted, WatchlistAdded: added}
	return res, l.persist(keys...)
}
