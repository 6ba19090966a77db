package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

var fixedNow = time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestSimulator_FirstQuoteIsFlat(t *testing.T) {
	sim := NewSimulator(clock)
	got, err := sim.FetchStockPrices(context.Background(), []string{"aapl", " ", "MSFT"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, u := range got {
		assert.Equal(t, u.Price, u.PreviousClose)
		assert.GreaterOrEqual(t, u.Price, simMinStart)
		assert.LessOrEqual(t, u.Price, simMinStart+simStartRange)
	}
	assert.Equal(t, "AAPL", got[0].Ticker)
}

func TestSimulator_RandomWalkStep(t *testing.T) {
	sim := NewSimulator(clock)
	sim.Seed("SPY", 100)
	sim.random = func() float64 { return 1 } // maximum up-move

	got, err := sim.FetchStockPrices(context.Background(), []string{"SPY"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 101.0, got[0].Price, 1e-9)
	assert.Equal(t, 100.0, got[0].PreviousClose)

	sim.random = func() float64 { return 0 }
	got, _ = sim.FetchStockPrices(context.Background(), []string{"SPY"})
	assert.InDelta(t, 99.99, got[0].Price, 1e-9)
}

func TestPriceOption(t *testing.T) {
	expired := "2026-10-01"
	future := "2027-04-16"

	tests := []struct {
		name       string
		leg        models.OptionLeg
		underlying float64
		want       float64
		wantAbove  float64
		ok         bool
	}{
		{"expired ITM call is intrinsic", models.OptionLeg{Type: models.OptionTypeCall, Strike: 100, Expiration: expired}, 110, 10, 0, true},
		{"expired ITM put is intrinsic", models.OptionLeg{Type: models.OptionTypePut, Strike: 100, Expiration: expired}, 92.5, 7.5, 0, true},
		{"expired OTM put is near zero", models.OptionLeg{Type: models.OptionTypePut, Strike: 100, Expiration: expired}, 150, 0.05, 0, true},
		{"future ATM call has time value", models.OptionLeg{Type: models.OptionTypeCall, Strike: 100, Expiration: future}, 100, -1, 5, true},
		{"bad expiration", models.OptionLeg{Type: models.OptionTypeCall, Strike: 100, Expiration: "soon"}, 100, 0, 0, false},
		{"bad type", models.OptionLeg{Type: "STRADDLE", Strike: 100, Expiration: future}, 100, 0, 0, false},
		{"no underlying", models.OptionLeg{Type: models.OptionTypeCall, Strike: 100, Expiration: future}, 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PriceOption(tt.leg, tt.underlying, fixedNow)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			if tt.want >= 0 {
				assert.InDelta(t, tt.want, got, 0.011)
			} else {
				assert.Greater(t, got, tt.wantAbove)
			}
		})
	}
}

func TestSimulator_FetchOptionPrices(t *testing.T) {
	sim := NewSimulator(clock)
	sim.Seed("AAPL", 200)

	legs := []models.OptionLeg{
		{ID: "l1", Ticker: "AAPL", Type: models.OptionTypeCall, Strike: 190, Expiration: "2026-10-01"},
		{ID: "l2", Ticker: "NVDA", Type: models.OptionTypePut, Strike: 100, Expiration: "2026-12-18"},
		{ID: "l3", Ticker: "AAPL", Type: models.OptionTypeCall, Strike: 190, Expiration: "bad"},
	}
	got, err := sim.FetchOptionPrices(context.Background(), legs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l1", got[0].ID)
	assert.InDelta(t, 10.0, got[0].CurrentPrice, 0.011)
	assert.Equal(t, "l2", got[1].ID)
	assert.Greater(t, got[1].CurrentPrice, 0.0)
}
