package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const sharesPerContract = 100

// DateLayout is the calendar-date layout used for open, close and expiration dates.
const DateLayout = "2006-01-02"

var contractMultiplier = decimal.NewFromInt(sharesPerContract)

// OptionType is CALL or PUT.
type OptionType string

// OptionAction is BUY or SELL.
type OptionAction string

const (
	// OptionTypeCall represents a call option contract
	OptionTypeCall OptionType = "CALL"
	// OptionTypePut represents a put option contract
	OptionTypePut OptionType = "PUT"

	// ActionBuy opens a long leg (debit)
	ActionBuy OptionAction = "BUY"
	// ActionSell opens a short leg (credit)
	ActionSell OptionAction = "SELL"
)

// Valid returns true if the OptionType is one of the defined constants
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// Valid returns true if the OptionAction is one of the defined constants
func (a OptionAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Account groups strategies by brokerage account.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Broker string `json:"broker"`
}

// LegInput is the user-supplied description of a single leg.
type LegInput struct {
	Ticker        string       `json:"ticker"`
	Type          OptionType   `json:"type"`
	Action        OptionAction `json:"action"`
	Strike        float64      `json:"strike"`
	Expiration    string       `json:"expiration"`
	PurchasePrice float64      `json:"purchasePrice"`
	Contracts     int          `json:"contracts"`
}

// StrategyInput is the user-supplied description of a strategy.
type StrategyInput struct {
	Name      string     `json:"name"`
	Legs      []LegInput `json:"legs"`
	AccountID string     `json:"accountId"`
	OpenDate  string     `json:"openDate"`
}

// OptionLeg is one contract line within a strategy.
type OptionLeg struct {
	ID            string       `json:"id"`
	Ticker        string       `json:"ticker"`
	Type          OptionType   `json:"type"`
	Action        OptionAction `json:"action"`
	Strike        float64      `json:"strike"`
	Expiration    string       `json:"expiration"`
	PurchasePrice float64      `json:"purchasePrice"`
	Contracts     int          `json:"contracts"`
	// CurrentPrice is the latest observed mark. Informational only; PL is not derived from it.
	CurrentPrice float64 `json:"currentPrice"`
	// PL is frozen when the leg is created and only replaced by a roll.
	PL float64 `json:"pl"`
}

// OptionStrategy is a named group of legs.
type OptionStrategy struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Legs      []OptionLeg `json:"legs"`
	TotalPL   float64     `json:"totalPL"` // open: sum of leg PL; closed: final realized P/L
	AccountID string      `json:"accountId"`
	OpenDate  string      `json:"openDate"`
	CloseDate string      `json:"closeDate,omitempty"`
	// RealizedPL is set only once the strategy is closed.
	RealizedPL *float64 `json:"realizedPL,omitempty"`
}

// IsClosed reports whether the strategy has been closed.
func (s *OptionStrategy) IsClosed() bool {
	return s.CloseDate != "" || s.RealizedPL != nil
}

// Tickers returns the distinct tickers covered by the strategy's legs, in leg order.
func (s *OptionStrategy) Tickers() []string {
	seen := make(map[string]struct{}, len(s.Legs))
	out := make([]string, 0, len(s.Legs))
	for _, leg := range s.Legs {
		if _, ok := seen[leg.Ticker]; ok {
			continue
		}
		seen[leg.Ticker] = struct{}{}
		out = append(out, leg.Ticker)
	}
	return out
}

// LegByID returns a pointer to the leg with the given id, or nil.
func (s *OptionStrategy) LegByID(id string) *OptionLeg {
	for i := range s.Legs {
		if s.Legs[i].ID == id {
			return &s.Legs[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate ledger-owned state.
func (s OptionStrategy) Clone() OptionStrategy {
	out := s
	out.Legs = append([]OptionLeg(nil), s.Legs...)
	if s.RealizedPL != nil {
		v := *s.RealizedPL
		out.RealizedPL = &v
	}
	return out
}

// SumLegPL returns the sum of the frozen leg P/L values.
func SumLegPL(legs []OptionLeg) float64 {
	total := decimal.Zero
	for _, leg := range legs {
		total = total.Add(decimal.NewFromFloat(leg.PL))
	}
	return total.InexactFloat64()
}

// ContractValue returns price * contracts * 100.
func ContractValue(price float64, contracts int) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(contracts))).
		Mul(contractMultiplier)
}

// EntryPL is the P/L recorded at entry: a BUY is a debit, a SELL is a credit.
func EntryPL(action OptionAction, purchasePrice float64, contracts int) float64 {
	cost := ContractValue(purchasePrice, contracts)
	if action == ActionBuy {
		return cost.Neg().InexactFloat64()
	}
	return cost.InexactFloat64()
}

// RealizedLegPL is the P/L realized by closing a leg at closingPrice.
func RealizedLegPL(leg OptionLeg, closingPrice float64) decimal.Decimal {
	costBasis := ContractValue(leg.PurchasePrice, leg.Contracts)
	closingValue := ContractValue(closingPrice, leg.Contracts)
	if leg.Action == ActionBuy {
		return closingValue.Sub(costBasis)
	}
	return costBasis.Sub(closingValue)
}

// RolledPurchasePrice returns the new cost basis after rolling for rollPremium.
// Rolling a long leg for a premium lowers the net debit; rolling a short leg raises the net credit.
func RolledPurchasePrice(action OptionAction, oldPrice, rollPremium float64) float64 {
	old := decimal.NewFromFloat(oldPrice)
	premium := decimal.NewFromFloat(rollPremium)
	if action == ActionBuy {
		return old.Sub(premium).InexactFloat64()
	}
	return old.Add(premium).InexactFloat64()
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Validate checks a leg input; the returned error names the offending field.
func (l LegInput) Validate() error {
	if NormalizeTicker(l.Ticker) == "" {
		return fmt.Errorf("leg ticker is required")
	}
	if !l.Type.Valid() {
		return fmt.Errorf("leg %s: type must be CALL or PUT (got %q)", l.Ticker, l.Type)
	}
	if !l.Action.Valid() {
		return fmt.Errorf("leg %s: action must be BUY or SELL (got %q)", l.Ticker, l.Action)
	}
	if l.Strike <= 0 {
		return fmt.Errorf("leg %s: strike must be > 0 (got %.2f)", l.Ticker, l.Strike)
	}
	if l.Contracts <= 0 {
		return fmt.Errorf("leg %s: contracts must be > 0 (got %d)", l.Ticker, l.Contracts)
	}
	if l.PurchasePrice < 0 {
		return fmt.Errorf("leg %s: purchasePrice cannot be negative (got %.2f)", l.Ticker, l.PurchasePrice)
	}
	if _, err := ParseDate(l.Expiration); err != nil {
		return fmt.Errorf("leg %s: expiration: %w", l.Ticker, err)
	}
	return nil
}

// Validate checks a strategy input and all of its legs.
func (in StrategyInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(in.Legs) == 0 {
		return fmt.Errorf("strategy %q must have at least one leg", in.Name)
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("strategy %q: accountId is required", in.Name)
	}
	if _, err := ParseDate(in.OpenDate); err != nil {
		return fmt.Errorf("strategy %q: openDate: %w", in.Name, err)
	}
	for _, leg := range in.Legs {
		if err := leg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewLeg builds a leg from input with its entry P/L computed and mark reset to 0.
func NewLeg(id string, in LegInput) OptionLeg {
	return OptionLeg{
		ID:            id,
		Ticker:        NormalizeTicker(in.Ticker),
		Type:          in.Type,
		Action:        in.Action,
		Strike:        in.Strike,
		Expiration:    in.Expiration,
		PurchasePrice: in.PurchasePrice,
		Contracts:     in.Contracts,
		CurrentPrice:  0,
		PL:            EntryPL(in.Action, in.PurchasePrice, in.Contracts),
	}
}
