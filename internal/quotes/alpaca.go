package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/util"
)

// Alpaca accepts at most this many symbols per options snapshot request.
const alpacaOptionBatch = 100

// snapshotter is the slice of the Alpaca market data client used for stocks.
type snapshotter interface {
	GetSnapshots(symbols []string, req marketdata.GetSnapshotRequest) (map[string]*marketdata.Snapshot, error)
}

// Alpaca fetches stock snapshots through the Alpaca SDK and option quotes
// from the options snapshot endpoint.
type Alpaca struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	client      *http.Client
	logger      *logrus.Logger
	concurrency int
	stocks      snapshotter
}

// NewAlpaca creates an Alpaca provider.
func NewAlpaca(apiKey, apiSecret string, opts Options) *Alpaca {
	opts = opts.withDefaults()
	baseURL := strings.TrimRight(opts.AlpacaDataURL, "/")
	return &Alpaca{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		baseURL:     baseURL,
		client:      opts.HTTPClient,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		stocks: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			BaseURL:    baseURL,
			HTTPClient: opts.HTTPClient,
		}),
	}
}

// FetchStockPrices returns the latest trade and the previous daily close per ticker.
func (a *Alpaca) FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshots, err := a.stocks.GetSnapshots(tickers, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, classifyAlpacaError(err)
	}

	out := make([]models.StockPriceUpdate, 0, len(tickers))
	for _, ticker := range tickers {
		snap := snapshots[ticker]
		if snap == nil || snap.LatestTrade == nil || snap.PrevDailyBar == nil {
			a.logger.WithField("ticker", ticker).Warn("Alpaca returned no snapshot")
			continue
		}
		price, prev := snap.LatestTrade.Price, snap.PrevDailyBar.Close
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		out = append(out, models.StockPriceUpdate{
			Ticker:        models.NormalizeTicker(ticker),
			Price:         price,
			PreviousClose: prev,
		})
	}
	return out, nil
}

func classifyAlpacaError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized") {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return fmt.Errorf("alpaca snapshots: %w", err)
}

// OCCSymbol builds the OCC option symbol: root, YYMMDD, C/P, strike x1000 in 8 digits.
func OCCSymbol(leg models.OptionLeg) (string, error) {
	exp, err := models.ParseDate(leg.Expiration)
	if err != nil {
		return "", err
	}
	cp := "C"
	if leg.Type == models.OptionTypePut {
		cp = "P"
	}
	strike := int64(math.Round(leg.Strike * 1000))
	return fmt.Sprintf("%s%s%s%08d", models.NormalizeTicker(leg.Ticker), exp.Format("060102"), cp, strike), nil
}

type alpacaOptionSnapshots struct {
	Snapshots map[string]struct {
		LatestQuote struct {
			BidPrice float64 `json:"bp"`
			AskPrice float64 `json:"ap"`
		} `json:"latestQuote"`
		LatestTrade struct {
			Timestamp time.Time `json:"t"`
			Price     float64   `json:"p"`
		} `json:"latestTrade"`
	} `json:"snapshots"`
}

// FetchOptionPrices returns the bid/ask midpoint per leg, falling back to the last trade.
func (a *Alpaca) FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	bySymbol := make(map[string][]string, len(legs))
	symbols := make([]string, 0, len(legs))
	for _, leg := range legs {
		sym, err := OCCSymbol(leg)
		if err != nil {
			a.logger.WithError(err).WithField("leg", leg.ID).Warn("Cannot build option symbol")
			continue
		}
		if _, seen := bySymbol[sym]; !seen {
			symbols = append(symbols, sym)
		}
		bySymbol[sym] = append(bySymbol[sym], leg.ID)
	}

	var batches [][]string
	for start := 0; start < len(symbols); start += alpacaOptionBatch {
		end := min(start+alpacaOptionBatch, len(symbols))
		batches = append(batches, symbols[start:end])
	}

	marks := make([]map[string]float64, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			m, err := a.fetchOptionBatch(gctx, batch)
			if err != nil {
				return err
			}
			marks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.OptionPriceUpdate, 0, len(legs))
	for _, m := range marks {
		for sym, mark := range m {
			for _, id := range bySymbol[sym] {
				out = append(out, models.OptionPriceUpdate{ID: id, CurrentPrice: mark})
			}
		}
	}
	return out, nil
}

func (a *Alpaca) fetchOptionBatch(ctx context.Context, symbols []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s/v1beta1/options/snapshots?%s", a.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option snapshots: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: alpaca options status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: alpaca options status 429", ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var snapshot alpacaOptionSnapshots
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode option snapshots: %w", err)
	}

	out := make(map[string]float64, len(snapshot.Snapshots))
	for sym, c := range snapshot.Snapshots {
		mark, ok := util.Mid(c.LatestQuote.BidPrice, c.LatestQuote.AskPrice)
		if !ok && c.LatestTrade.Price > 0 {
			mark, ok = util.RoundToTick(c.LatestTrade.Price, util.CentTick), true
		}
		if !ok {
			a.logger.WithField("symbol", sym).Debug("No option quote")
			continue
		}
		out[sym] = mark
	}
	return out, nil
}

var _ Provider = (*Alpaca)(nil)
