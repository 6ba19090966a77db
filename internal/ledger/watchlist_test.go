package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

func TestAddToWatchlist(t *testing.T) {
	f := newFixture(t)
	accID := f.account(t)
	f.open(t, strategy("held", accID, leg("AAPL", models.OptionTypeCall, models.ActionBuy, 50, 2, 1)))

	tests := []struct {
		ticker string
		added  bool
	}{
		{" spy ", true},
		{"SPY", false},
		{"", false},
		{"aapl", false},
		{"qqq", true},
	}
	for _, tt := range tests {
		added, err := f.ledger.AddToWatchlist(tt.ticker)
		require.NoError(t, err)
		assert.Equal(t, tt.added, added, "ticker %q", tt.ticker)
	}

	assert.Equal(t, []string{"SPY", "QQQ"}, f.ledger.ManualWatchlist())
	assert.Equal(t, []string{"SPY", "QQQ"}, stored[[]string](t, f.kv, storage.KeyManualWatchlist))
	assert.Equal(t, []string{"AAPL", "QQQ", "SPY"}, f.ledger.Universe())
}

func TestRemoveFromWatchlist(t *testing.T) {
	f := newFixture(t)
	accID := f.account(t)
	for _, tk := range []string{"SPY", "AAPL"} {
		_, err := f.ledger.AddToWatchlist(tk)
		require.NoError(t, err)
	}
	f.ledger.ApplyStockPrices([]models.StockPriceUpdate{
		{Ticker: "SPY", Price: 450, PreviousClose: 445},
		{Ticker: "AAPL", Price: 200, PreviousClose: 198},
	})
	// AAPL moves from the watchlist into a position
	f.open(t, strategy("AAPL", accID, leg("AAPL", models.OptionTypeCall, models.ActionBuy, 200, 2, 1)))

	require.NoError(t, f.ledger.RemoveFromWatchlist("spy"))
	require.NoError(t, f.ledger.RemoveFromWatchlist("AAPL"))

	assert.Empty(t, f.ledger.ManualWatchlist())
	items := f.ledger.Watchlist()
	require.Len(t, items, 1, "held ticker keeps its row")
	assert.Equal(t, "AAPL", items[0].Ticker)
}

func watchlistTickers(l *Ledger) []string {
	out := []string{}
	for _, item := range l.Watchlist() {
		out = append(out, item.Ticker)
	}
	return out
}

func TestWatchlist_RowsFollowUniverse(t *testing.T) {
	t.Run("deleted alert", func(t *testing.T) {
		f := newFixture(t)
		a, err := f.ledger.AddAlert("TSLA", 200, models.ConditionBelow)
		require.NoError(t, err)
		f.ledger.ApplyStockPrices([]models.StockPriceUpdate{{Ticker: "TSLA", Price: 250, PreviousClose: 240}})
		require.Equal(t, []string{"TSLA"}, watchlistTickers(f.ledger))

		require.NoError(t, f.ledger.DeleteAlert(a.ID))
		assert.Empty(t, f.ledger.Universe())
		assert.Empty(t, watchlistTickers(f.ledger))

		f.ledger.ApplyStockPrices(nil)
		assert.Empty(t, watchlistTickers(f.ledger))
		_, ok := f.ledger.Quote("TSLA")
		assert.True(t, ok, "the latest quote is kept")
	})

	t.Run("edit swaps the held ticker", func(t *testing.T) {
		f := newFixture(t)
		accID := f.account(t)
		s := f.open(t, strategy("SPY put", accID, leg("SPY", models.OptionTypePut, models.ActionSell, 450, 2, 1)))
		f.ledger.ApplyStockPrices([]models.StockPriceUpdate{{Ticker: "SPY", Price: 450, PreviousClose: 445}})
		require.Equal(t, []string{"SPY"}, watchlistTickers(f.ledger))

		applied, err := f.ledger.EditStrategy(s.ID, strategy("QQQ put", accID, leg("QQQ", models.OptionTypePut, models.ActionSell, 350, 2, 1)))
		require.NoError(t, err)
		require.True(t, applied)
		assert.Equal(t, []string{"QQQ"}, f.ledger.Universe())
		assert.Empty(t, watchlistTickers(f.ledger))

		f.ledger.ApplyStockPrices([]models.StockPriceUpdate{
			{Ticker: "SPY", Price: 451, PreviousClose: 445},
			{Ticker: "QQQ", Price: 351, PreviousClose: 350},
		})
		assert.Equal(t, []string{"QQQ"}, watchlistTickers(f.ledger))
	})

	t.Run("manual removal keeps alert ticker", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.AddToWatchlist("NVDA")
		require.NoError(t, err)
		_, err = f.ledger.AddAlert("NVDA", 150, models.ConditionAbove)
		require.NoError(t, err)
		f.ledger.ApplyStockPrices([]models.StockPriceUpdate{{Ticker: "NVDA", Price: 120, PreviousClose: 118}})

		require.NoError(t, f.ledger.RemoveFromWatchlist("NVDA"))
		assert.Equal(t, []string{"NVDA"}, watchlistTickers(f.ledger))
	})
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)

	a, err := f.ledger.AddAlert(" tsla", 250, models.ConditionBelow)
	require.NoError(t, err)
	assert.Equal(t, "TSLA", a.Ticker)
	assert.Equal(t, models.AlertActive, a.Status)
	assert.True(t, testNow.Equal(a.CreatedAt))
	assert.Nil(t, a.TriggeredAt)
	assert.Equal(t, []string{"TSLA"}, f.ledger.Universe())

	bad := []struct {
		ticker    string
		target    float64
		condition models.AlertCondition
	}{
		{"", 10, models.ConditionAbove},
		{"TSLA", 0, models.ConditionAbove},
		{"TSLA", -5, models.ConditionBelow},
		{"TSLA", 10, "crosses"},
	}
	for _, tt := range bad {
		_, err := f.ledger.AddAlert(tt.ticker, tt.target, tt.condition)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Len(t, f.ledger.Alerts(), 1)

	assert.ErrorIs(t, f.ledger.DeleteAlert("missing"), ErrAlertNotFound)
	require.NoError(t, f.ledger.DeleteAlert(a.ID))
	assert.Empty(t, f.ledger.Alerts())
	assert.Empty(t, stored[[]models.PriceAlert](t, f.kv, storage.KeyPriceAlerts))
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	a1, err := f.ledger.AddAlert("AAPL", 100, models.ConditionAbove)
	require.NoError(t, err)
	a2, err := f.ledger.AddAlert("MSFT", 100, models.ConditionAbove)
	require.NoError(t, err)

	_, err = f.ledger.EvaluateAlerts([]models.StockPriceUpdate{{Ticker: "AAPL", Price: 101}, {Ticker: "MSFT", Price: 102}})
	require.NoError(t, err)
	require.Len(t, f.ledger.Notifications(), 2)

	require.NoError(t, f.ledger.DismissNotification(a1.ID))
	notes := f.ledger.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, a2.ID, notes[0].ID)
	assert.ErrorIs(t, f.ledger.DismissNotification(a1.ID), ErrNotificationNotFound)

	for _, a := range f.ledger.Alerts() {
		assert.Equal(t, models.AlertTriggered, a.Status, "dismissing keeps the alert triggered")
	}
}
