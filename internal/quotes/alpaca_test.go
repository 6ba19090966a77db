package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

type fakeSnapshotter struct {
	snapshots map[string]*marketdata.Snapshot
	err       error
	requested []string
}

func (f *fakeSnapshotter) GetSnapshots(symbols []string, _ marketdata.GetSnapshotRequest) (map[string]*marketdata.Snapshot, error) {
	f.requested = symbols
	return f.snapshots, f.err
}

func newTestAlpaca(url string) *Alpaca {
	logger, _ := test.NewNullLogger()
	return NewAlpaca("key", "secret", Options{Logger: logger, AlpacaDataURL: url})
}

func TestOCCSymbol(t *testing.T) {
	tests := []struct {
		leg     models.OptionLeg
		want    string
		wantErr bool
	}{
		{models.OptionLeg{Ticker: "SPY", Type: models.OptionTypePut, Strike: 450, Expiration: "2026-12-18"}, "SPY261218P00450000", false},
		{models.OptionLeg{Ticker: "f", Type: models.OptionTypeCall, Strike: 12.5, Expiration: "2027-01-15"}, "F270115C00012500", false},
		{models.OptionLeg{Ticker: "AAPL", Type: models.OptionTypeCall, Strike: 1000, Expiration: "2026-11-20"}, "AAPL261120C01000000", false},
		{models.OptionLeg{Ticker: "AAPL", Type: models.OptionTypeCall, Strike: 100, Expiration: "11/20/2026"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := OCCSymbol(tt.leg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlpaca_FetchStockPrices(t *testing.T) {
	a := newTestAlpaca("")
	fake := &fakeSnapshotter{snapshots: map[string]*marketdata.Snapshot{
		"AAPL": {LatestTrade: &marketdata.Trade{Price: 227.55}, PrevDailyBar: &marketdata.Bar{Close: 225}},
		"MSFT": {LatestTrade: &marketdata.Trade{Price: 410}},
	}}
	a.stocks = fake

	got, err := a.FetchStockPrices(context.Background(), []string{"AAPL", "MSFT", "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NOPE"}, fake.requested)
	assert.Equal(t, []models.StockPriceUpdate{{Ticker: "AAPL", Price: 227.55, PreviousClose: 225}}, got)

	t.Run("unauthorized", func(t *testing.T) {
		a.stocks = &fakeSnapshotter{err: errors.New("status code 403: forbidden")}
		_, err := a.FetchStockPrices(context.Background(), []string{"AAPL"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("no tickers", func(t *testing.T) {
		got, err := a.FetchStockPrices(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestAlpaca_FetchOptionPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta1/options/snapshots", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))

		symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
		sort.Strings(symbols)
		assert.Equal(t, []string{"AAPL261120C00200000", "SPY261218P00450000", "TSLA261218C00300000"}, symbols)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snapshots": {
			"SPY261218P00450000": {"latestQuote": {"bp": 1.10, "ap": 1.30}, "latestTrade": {"p": 1.25}},
			"AAPL261120C00200000": {"latestQuote": {"bp": 0, "ap": 0}, "latestTrade": {"p": 2.5}},
			"TSLA261218C00300000": {"latestQuote": {}, "latestTrade": {}}
		}}`))
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	legs := []models.OptionLeg{
		{ID: "short-put", Ticker: "SPY", Type: models.OptionTypePut, Strike: 450, Expiration: "2026-12-18"},
		{ID: "same-contract", Ticker: "SPY", Type: models.OptionTypePut, Strike: 450, Expiration: "2026-12-18"},
		{ID: "call", Ticker: "AAPL", Type: models.OptionTypeCall, Strike: 200, Expiration: "2026-11-20"},
		{ID: "no-quote", Ticker: "TSLA", Type: models.OptionTypeCall, Strike: 300, Expiration: "2026-12-18"},
		{ID: "bad-date", Ticker: "TSLA", Type: models.OptionTypeCall, Strike: 300, Expiration: "someday"},
	}

	got, err := a.FetchOptionPrices(context.Background(), legs)
	require.NoError(t, err)

	marks := make(map[string]float64)
	for _, u := range got {
		marks[u.ID] = u.CurrentPrice
	}
	assert.Equal(t, map[string]float64{"short-put": 1.2, "same-contract": 1.2, "call": 2.5}, marks)
}

func TestAlpaca_FetchOptionPricesStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	leg := models.OptionLeg{ID: "l", Ticker: "SPY", Type: models.OptionTypePut, Strike: 450, Expiration: "2026-12-18"}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestAlpaca(srv.URL).FetchOptionPrices(context.Background(), []models.OptionLeg{leg})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestAlpaca(srv.URL).FetchOptionPrices(context.Background(), []models.OptionLeg{leg})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream down")
	})
}
