package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/quotes"
	"github.com/eddiefleurent/options_tracker/internal/storage"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

var testNow = time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

// MockFactory is a mock implementation of ledger.ProviderFactory
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) New(settings models.ProviderSettings) (quotes.Provider, error) {
	args := m.Called(settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(quotes.Provider), args.Error(1)
}

// MockProvider is a mock implementation of quotes.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	args := m.Called(ctx, tickers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StockPriceUpdate), args.Error(1)
}

func (m *MockProvider) FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	args := m.Called(ctx, legs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OptionPriceUpdate), args.Error(1)
}

type harness struct {
	server   *Server
	ledger   *ledger.Ledger
	factory  *MockFactory
	provider *MockProvider
	token    string
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := &harness{factory: new(MockFactory), provider: new(MockProvider), token: token}
	h.ledger = ledger.New(storage.NewStore(storage.NewMemoryKV(), logger), h.factory, logger, ledger.Config{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	h.server = NewServer(Config{AuthToken: token, RequestTimeout: 5 * time.Second}, h.ledger, logger)
	h.server.now = func() time.Time { return testNow }
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if h.token != "" {
		req.Header.Set("X-Auth-Token", h.token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) account(t *testing.T) models.Account {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/accounts", accountRequest{Name: "Main", Broker: "Schwab"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.Account](t, rec)
}

func (h *harness) openPut(t *testing.T, accountID string) models.OptionStrategy {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/positions", models.StrategyInput{
		Name:      "SPY short put",
		AccountID: accountID,
		OpenDate:  "2026-10-01",
		Legs: []models.LegInput{{
			Ticker: "spy", Type: models.OptionTypePut, Action: models.ActionSell,
			Strike: 450, Expiration: "2026-12-18", PurchasePrice: 3, Contracts: 1,
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.OptionStrategy](t, rec)
}

func TestServer_HealthSkipsAuth(t *testing.T) {
	h := newHarness(t, "secret")
	h.token = ""

	rec := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, testNow.Unix(), body["timestamp"])

	rec = h.do(t, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts?token=secret", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AccountLifecycle(t *testing.T) {
	h := newHarness(t, "")
	acc := h.account(t)
	h.openPut(t, acc.ID)

	rec := h.do(t, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, []models.Account{acc}, decodeBody[[]models.Account](t, rec))

	rec = h.do(t, http.MethodDelete, "/api/accounts/"+acc.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t,
		"Cannot delete account as it still contains positions. Please move or close them first.",
		decodeBody[errorBody](t, rec).Error)

	rec = h.do(t, http.MethodDelete, "/api/accounts/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/accounts", accountRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StrategyLifecycle(t *testing.T) {
	h := newHarness(t, "")
	acc := h.account(t)
	s := h.openPut(t, acc.ID)
	assert.Equal(t, "SPY", s.Legs[0].Ticker)
	assert.Equal(t, 300.0, s.TotalPL)

	rec := h.do(t, http.MethodGet, "/api/positions?account="+acc.ID, nil)
	assert.Len(t, decodeBody[[]models.OptionStrategy](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/api/positions/"+s.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/positions/unknown", models.StrategyInput{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"applied": false}, decodeBody[map[string]bool](t, rec))

	rec = h.do(t, http.MethodPost, "/api/positions/"+s.ID+"/roll", ledger.RollInput{
		NewStrike: 440, NewExpiration: "2027-01-15", RollPremium: 1.5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rolled := decodeBody[models.OptionStrategy](t, rec)
	assert.Equal(t, "SPY 440 PUT (Rolled)", rolled.Name)

	rec = h.do(t, http.MethodPost, "/api/positions/"+s.ID+"/close", closeRequest{
		Legs: []ledger.ClosingLeg{{LegID: rolled.Legs[0].ID, ClosingPrice: 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ledger.CloseResult](t, rec)
	require.NotNil(t, res.Strategy.RealizedPL)
	assert.Equal(t, []string{"SPY"}, res.WatchlistAdded)

	rec = h.do(t, http.MethodGet, "/api/closed", nil)
	assert.Len(t, decodeBody[[]models.OptionStrategy](t, rec), 1)
	rec = h.do(t, http.MethodGet, "/api/positions", nil)
	assert.Empty(t, decodeBody[[]models.OptionStrategy](t, rec))

	rec = h.do(t, http.MethodPost, "/api/positions/"+s.ID+"/close", closeRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RejectsBadBodies(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPost, "/api/accounts", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/accounts", `{"name":"x","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Error, "invalid request body")

	rec = h.do(t, http.MethodPost, "/api/positions", models.StrategyInput{Name: "empty", AccountID: "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SortAndSummary(t *testing.T) {
	h := newHarness(t, "")
	acc := h.account(t)
	h.openPut(t, acc.ID)

	rec := h.do(t, http.MethodPost, "/api/sort/open", sortRequest{Key: views.KeyTotalPL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, views.SortConfig{Key: views.KeyTotalPL, Direction: views.Ascending}, decodeBody[views.SortConfig](t, rec))

	rec = h.do(t, http.MethodPost, "/api/sort/pending", sortRequest{Key: views.KeyName})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[ledger.Summary](t, rec)
	assert.Equal(t, views.PeriodToday, sum.Period)
	assert.Equal(t, views.AllAccounts, sum.AccountID)
	assert.Equal(t, 300.0, sum.UnrealizedPL)
	assert.Equal(t, 1, sum.OpenCount)

	rec = h.do(t, http.MethodGet, "/api/summary?period=custom&end=2026-10-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum = decodeBody[ledger.Summary](t, rec)
	assert.Equal(t, views.DateRange{Start: "2026-09-18", End: "2026-10-10"}, sum.Range)

	rec = h.do(t, http.MethodGet, "/api/summary?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_WatchlistAndAlerts(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPost, "/api/watchlist", watchRequest{Ticker: "nvda"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/watchlist", watchRequest{Ticker: "NVDA"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"added": false}, decodeBody[map[string]bool](t, rec))

	rec = h.do(t, http.MethodGet, "/api/watchlist", nil)
	assert.Equal(t, []string{"NVDA"}, decodeBody[watchlistResponse](t, rec).Manual)

	rec = h.do(t, http.MethodDelete, "/api/watchlist/nvda", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/alerts", alertRequest{Ticker: "AAPL", TargetPrice: 200, Condition: models.ConditionBelow})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alert := decodeBody[models.PriceAlert](t, rec)
	assert.Equal(t, models.AlertActive, alert.Status)

	rec = h.do(t, http.MethodPost, "/api/alerts", alertRequest{Ticker: "AAPL", TargetPrice: -1, Condition: models.ConditionBelow})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/alerts/"+alert.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/alerts/"+alert.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/notifications/none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Refresh(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, http.MethodPost, "/api/watchlist", watchRequest{Ticker: "AAPL"})

	rec := h.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "API keys are not configured. Please set them in the settings.", decodeBody[errorBody](t, rec).Error)

	rec = h.do(t, http.MethodPut, "/api/settings/provider", models.ProviderSettings{Provider: models.ProviderSimulated})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	settings := models.ProviderSettings{Provider: models.ProviderSimulated}
	h.factory.On("New", settings).Return(h.provider, nil)
	h.provider.On("FetchStockPrices", mock.Anything, []string{"AAPL"}).
		Return([]models.StockPriceUpdate{{Ticker: "AAPL", Price: 230, PreviousClose: 225}}, nil).Once()

	rec = h.do(t, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ledger.RefreshResult](t, rec)
	assert.Equal(t, 1, res.StockQuotes)

	rec = h.do(t, http.MethodGet, "/api/watchlist", nil)
	items := decodeBody[watchlistResponse](t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, 230.0, items[0].Price)

	h.provider.On("FetchStockPrices", mock.Anything, []string{"AAPL"}).
		Return(nil, errors.New("rate limit exceeded")).Once()
	rec = h.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to fetch latest prices. rate limit exceeded", decodeBody[errorBody](t, rec).Error)
}

func TestServer_ProviderSettingsAreMasked(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPut, "/api/settings/provider", models.ProviderSettings{
		Provider: models.ProviderAlpaca,
		Keys:     models.APIKeys{AlpacaKey: "key", AlpacaSecret: "secret"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[providerResponse](t, rec)
	assert.True(t, body.Configured)
	assert.Equal(t, maskedKey, body.Keys.AlpacaSecret)
	assert.Empty(t, body.Keys.Gemini)

	rec = h.do(t, http.MethodPut, "/api/settings/provider", models.ProviderSettings{Provider: "bloomberg"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Audit(t *testing.T) {
	h := newHarness(t, "")
	h.openPut(t, h.account(t).ID)

	rec := h.do(t, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[ledger.AuditReport](t, rec)
	assert.Equal(t, 1, got.Open)
	assert.Equal(t, 1, got.OpenLegs)
	assert.Empty(t, got.Issues)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ledger.ConfigError{Err: quotes.ErrMissingCredentials}, http.StatusPreconditionFailed},
		{&ledger.RefreshError{Err: errors.New("boom")}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", ledger.ErrAlertNotFound), http.StatusNotFound},
		{&ledger.DomainError{Err: ledger.ErrMultiLegRoll}, http.StatusConflict},
		{&ledger.DomainError{Err: ledger.ErrInvalidInput, Detail: "x"}, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
