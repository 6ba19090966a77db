package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/util"
)

// tradierBatch caps the symbols sent in one quotes request.
const tradierBatch = 100

// singleOrArray decodes Tradier fields that hold one object or an array of them.
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type tradierQuotesResponse struct {
	Quotes struct {
		Quote singleOrArray[tradierQuote] `json:"quote"`
	} `json:"quotes"`
}

// tradierQuote covers both equity and option quotes.
type tradierQuote struct {
	Symbol    string   `json:"symbol"`
	Type      string   `json:"type"`
	Last      *float64 `json:"last"`
	PrevClose *float64 `json:"prevclose"`
	Bid       float64  `json:"bid"`
	Ask       float64  `json:"ask"`
}

// Tradier reads stock and option quotes from the Tradier markets API.
type Tradier struct {
	token       string
	baseURL     string
	client      *http.Client
	logger      *logrus.Logger
	concurrency int
}

// NewTradier creates a Tradier provider authenticated with an access token.
func NewTradier(token string, opts Options) *Tradier {
	opts = opts.withDefaults()
	return &Tradier{
		token:       token,
		baseURL:     strings.TrimRight(opts.TradierURL, "/"),
		client:      opts.HTTPClient,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
	}
}

// FetchStockPrices returns the last trade and previous close per ticker.
func (t *Tradier) FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	quotes, err := t.quotes(ctx, tickers)
	if err != nil {
		return nil, err
	}

	out := make([]models.StockPriceUpdate, 0, len(quotes))
	for _, q := range quotes {
		if q.Last == nil || *q.Last <= 0 || math.IsNaN(*q.Last) || math.IsInf(*q.Last, 0) {
			t.logger.WithField("ticker", q.Symbol).Warn("Tradier returned no last price")
			continue
		}
		prev := *q.Last
		if q.PrevClose != nil && *q.PrevClose > 0 {
			prev = *q.PrevClose
		}
		out = append(out, models.StockPriceUpdate{
			Ticker:        models.NormalizeTicker(q.Symbol),
			Price:         *q.Last,
			PreviousClose: prev,
		})
	}
	return out, nil
}

// FetchOptionPrices returns the bid/ask midpoint per leg, falling back to the last trade.
func (t *Tradier) FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	bySymbol := make(map[string][]string, len(legs))
	symbols := make([]string, 0, len(legs))
	for _, leg := range legs {
		sym, err := OCCSymbol(leg)
		if err != nil {
			t.logger.WithError(err).WithField("leg", leg.ID).Warn("Cannot build option symbol")
			continue
		}
		if _, seen := bySymbol[sym]; !seen {
			symbols = append(symbols, sym)
		}
		bySymbol[sym] = append(bySymbol[sym], leg.ID)
	}

	quotes, err := t.quotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	out := make([]models.OptionPriceUpdate, 0, len(legs))
	for _, q := range quotes {
		mark, ok := util.Mid(q.Bid, q.Ask)
		if !ok && q.Last != nil && *q.Last > 0 {
			mark, ok = util.RoundToTick(*q.Last, util.CentTick), true
		}
		if !ok {
			t.logger.WithField("symbol", q.Symbol).Debug("No option quote")
			continue
		}
		for _, id := range bySymbol[q.Symbol] {
			out = append(out, models.OptionPriceUpdate{ID: id, CurrentPrice: mark})
		}
	}
	return out, nil
}

// quotes fetches symbols in batches. Unknown symbols are simply absent.
func (t *Tradier) quotes(ctx context.Context, symbols []string) ([]tradierQuote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var batches [][]string
	for start := 0; start < len(symbols); start += tradierBatch {
		batches = append(batches, symbols[start:min(start+tradierBatch, len(symbols))])
	}

	results := make([][]tradierQuote, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			var resp tradierQuotesResponse
			params := url.Values{}
			params.Set("symbols", strings.Join(batch, ","))
			params.Set("greeks", "false")
			if err := t.makeRequest(gctx, "/markets/quotes", params, &resp); err != nil {
				return err
			}
			results[i] = resp.Quotes.Quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []tradierQuote
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (t *Tradier) makeRequest(ctx context.Context, path string, params url.Values, response any) error {
	endpoint := t.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tradier request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.WithError(err).Debug("Failed to close response body")
		}
	}()

	if remaining := resp.Header.Get("X-Ratelimit-Available"); remaining != "" {
		t.logger.WithField("available", remaining).Debug("Tradier rate limit")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: tradier status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: tradier status 429", ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode tradier quotes: %w", err)
	}
	return nil
}

var _ Provider = (*Tradier)(nil)
