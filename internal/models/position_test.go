package models

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPL(t *testing.T) {
	tests := []struct {
		name      string
		action    OptionAction
		price     float64
		contracts int
		want      float64
	}{
		{name: "buy is a debit", action: ActionBuy, price: 2, contracts: 1, want: -200},
		{name: "sell is a credit", action: ActionSell, price: 2, contracts: 1, want: 200},
		{name: "fractional premium stays exact", action: ActionSell, price: 2.35, contracts: 3, want: 705},
		{name: "zero premium", action: ActionBuy, price: 0, contracts: 5, want: 0},
		{name: "many contracts", action: ActionBuy, price: 0.07, contracts: 10, want: -70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntryPL(tt.action, tt.price, tt.contracts))
		})
	}
}

func TestRealizedLegPL(t *testing.T) {
	long := OptionLeg{Action: ActionBuy, PurchasePrice: 2, Contracts: 1}
	short := OptionLeg{Action: ActionSell, PurchasePrice: 2, Contracts: 2}

	assert.Equal(t, 100.0, RealizedLegPL(long, 3).InexactFloat64())
	assert.Equal(t, -150.0, RealizedLegPL(long, 0.5).InexactFloat64())
	assert.Equal(t, 300.0, RealizedLegPL(short, 0.5).InexactFloat64())
	assert.Equal(t, -200.0, RealizedLegPL(short, 3).InexactFloat64())
}

func TestRolledPurchasePrice(t *testing.T) {
	assert.Equal(t, 4.0, RolledPurchasePrice(ActionBuy, 5, 1))
	assert.Equal(t, 6.0, RolledPurchasePrice(ActionSell, 5, 1))
	// a debit roll on a long leg raises the cost basis
	assert.Equal(t, 5.5, RolledPurchasePrice(ActionBuy, 5, -0.5))
}

func TestNewLeg_ResetsMarkAndFreezesPL(t *testing.T) {
	leg := NewLeg("leg-1", LegInput{
		Ticker:        " spy ",
		Type:          OptionTypeCall,
		Action:        ActionBuy,
		Strike:        50,
		Expiration:    "2026-12-18",
		PurchasePrice: 2,
		Contracts:     1,
	})

	assert.Equal(t, "SPY", leg.Ticker)
	assert.Equal(t, 0.0, leg.CurrentPrice)
	assert.Equal(t, -200.0, leg.PL)
}

func TestSumLegPL(t *testing.T) {
	legs := []OptionLeg{{PL: -200}, {PL: 350.5}, {PL: 0.1}, {PL: 0.2}}
	assert.Equal(t, 150.8, SumLegPL(legs))
	assert.Equal(t, 0.0, SumLegPL(nil))
}

func TestStrategyInputValidate(t *testing.T) {
	valid := StrategyInput{
		Name:      "Iron condor",
		AccountID: "acc-1",
		OpenDate:  "2026-10-01",
		Legs: []LegInput{{
			Ticker: "SPY", Type: OptionTypePut, Action: ActionSell,
			Strike: 400, Expiration: "2026-11-20", PurchasePrice: 1.5, Contracts: 1,
		}},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(in *StrategyInput)
		errMsg string
	}{
		{"missing name", func(in *StrategyInput) { in.Name = " " }, "strategy name is required"},
		{"no legs", func(in *StrategyInput) { in.Legs = nil }, "at least one leg"},
		{"missing account", func(in *StrategyInput) { in.AccountID = "" }, "accountId is required"},
		{"bad open date", func(in *StrategyInput) { in.OpenDate = "10/01/2026" }, "openDate"},
		{"bad type", func(in *StrategyInput) { in.Legs[0].Type = "STRADDLE" }, "type must be CALL or PUT"},
		{"bad action", func(in *StrategyInput) { in.Legs[0].Action = "HOLD" }, "action must be BUY or SELL"},
		{"zero strike", func(in *StrategyInput) { in.Legs[0].Strike = 0 }, "strike must be > 0"},
		{"zero contracts", func(in *StrategyInput) { in.Legs[0].Contracts = 0 }, "contracts must be > 0"},
		{"negative premium", func(in *StrategyInput) { in.Legs[0].PurchasePrice = -1 }, "cannot be negative"},
		{"bad expiration", func(in *StrategyInput) { in.Legs[0].Expiration = "soon" }, "expiration"},
		{"empty ticker", func(in *StrategyInput) { in.Legs[0].Ticker = "  " }, "ticker is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			in.Legs = append([]LegInput(nil), valid.Legs...)
			tt.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestOptionStrategyClone_IsDeep(t *testing.T) {
	realized := 100.0
	s := OptionStrategy{
		ID:         "s1",
		Legs:       []OptionLeg{{ID: "l1", Ticker: "AAPL"}},
		RealizedPL: &realized,
	}

	c := s.Clone()
	c.Legs[0].Ticker = "MSFT"
	*c.RealizedPL = 5

	assert.Equal(t, "AAPL", s.Legs[0].Ticker)
	assert.Equal(t, 100.0, *s.RealizedPL)
}

func TestOptionStrategyTickers(t *testing.T) {
	s := OptionStrategy{Legs: []OptionLeg{{Ticker: "SPY"}, {Ticker: "QQQ"}, {Ticker: "SPY"}}}
	assert.Equal(t, []string{"SPY", "QQQ"}, s.Tickers())
}

func TestNewWatchlistItem(t *testing.T) {
	item := NewWatchlistItem(StockPriceUpdate{Ticker: "AAPL", Price: 110, PreviousClose: 100})
	assert.InDelta(t, 10, item.Change, 1e-9)
	assert.InDelta(t, 10, item.ChangePercent, 1e-9)

	flat := NewWatchlistItem(StockPriceUpdate{Ticker: "NEW", Price: 25, PreviousClose: 0})
	assert.Equal(t, 25.0, flat.Change)
	assert.Equal(t, 0.0, flat.ChangePercent)
	assert.False(t, math.IsNaN(flat.ChangePercent))

	down := NewWatchlistItem(StockPriceUpdate{Ticker: "TSLA", Price: 180, PreviousClose: 200})
	assert.InDelta(t, -10, down.ChangePercent, 1e-9)

	// 10/240*100 keeps full float64 precision
	repeating := NewWatchlistItem(StockPriceUpdate{Ticker: "TSLA", Price: 250, PreviousClose: 240})
	assert.Equal(t, "4.166666666666667", strconv.FormatFloat(repeating.ChangePercent, 'g', -1, 64))
	third := NewWatchlistItem(StockPriceUpdate{Ticker: "F", Price: 4, PreviousClose: 3})
	assert.Equal(t, "33.333333333333336", strconv.FormatFloat(third.ChangePercent, 'g', -1, 64))
}

func TestPriceAlert_CheckConditionInclusive(t *testing.T) {
	above := PriceAlert{ID: "a", Condition: ConditionAbove, TargetPrice: 100, Status: AlertActive}
	below := PriceAlert{ID: "b", Condition: ConditionBelow, TargetPrice: 100, Status: AlertActive}

	assert.True(t, above.CheckCondition(100))
	assert.True(t, above.CheckCondition(100.01))
	assert.False(t, above.CheckCondition(99.99))

	assert.True(t, below.CheckCondition(100))
	assert.True(t, below.CheckCondition(99.99))
	assert.False(t, below.CheckCondition(100.01))
}

func TestPriceAlert_TriggerIsOneWay(t *testing.T) {
	a := PriceAlert{ID: "a", Condition: ConditionAbove, TargetPrice: 100, Status: AlertActive}
	at := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

	require.NoError(t, a.Trigger(at))
	assert.Equal(t, AlertTriggered, a.Status)
	require.NotNil(t, a.TriggeredAt)
	assert.True(t, a.TriggeredAt.Equal(at))

	assert.False(t, a.CheckCondition(1000), "triggered alerts are not evaluated")
	assert.Error(t, a.Trigger(at.Add(time.Hour)))
	assert.True(t, a.TriggeredAt.Equal(at))
}

func TestProviderSettingsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings ProviderSettings
		want     bool
	}{
		{"alpha vantage with key", ProviderSettings{Provider: ProviderAlphaVantage, Keys: APIKeys{AlphaVantage: "k"}}, true},
		{"alpha vantage without key", ProviderSettings{Provider: ProviderAlphaVantage}, false},
		{"default provider is alpha vantage", ProviderSettings{Keys: APIKeys{AlphaVantage: "k"}}, true},
		{"alpaca needs both", ProviderSettings{Provider: ProviderAlpaca, Keys: APIKeys{AlpacaKey: "k"}}, false},
		{"alpaca complete", ProviderSettings{Provider: ProviderAlpaca, Keys: APIKeys{AlpacaKey: "k", AlpacaSecret: "s"}}, true},
		{"tradier token", ProviderSettings{Provider: ProviderTradier, Keys: APIKeys{Tradier: "t"}}, true},
		{"tradier without token", ProviderSettings{Provider: ProviderTradier, Keys: APIKeys{AlpacaKey: "k"}}, false},
		{"simulated", ProviderSettings{Provider: ProviderSimulated}, true},
		{"unknown", ProviderSettings{Provider: "bloomberg"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.Configured())
		})
	}
}

func TestEstimateMargin(t *testing.T) {
	shortPut := OptionStrategy{Legs: []OptionLeg{{Action: ActionSell, Strike: 100, PurchasePrice: 2, Contracts: 1}}}
	// 20% of 10,000 less 200 premium
	assert.Equal(t, 1800.0, EstimateMargin(shortPut))

	richPremium := OptionStrategy{Legs: []OptionLeg{{Action: ActionSell, Strike: 50, PurchasePrice: 9, Contracts: 2}}}
	// 20% of 10,000 less 1,800 is below the 10% floor
	assert.Equal(t, 1000.0, EstimateMargin(richPremium))

	longCall := OptionStrategy{Legs: []OptionLeg{{Action: ActionBuy, Strike: 100, PurchasePrice: 2, Contracts: 1}}}
	assert.Equal(t, 0.0, EstimateMargin(longCall))
}
