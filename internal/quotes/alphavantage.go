package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// GLOBAL_QUOTE fields
const (
	avPricePath         = `$["Global Quote"]["05. price"]`
	avPreviousClosePath = `$["Global Quote"]["08. previous close"]`
)

// OptionEstimator produces a per-share option mark from the leg and its underlying price.
type OptionEstimator interface {
	Estimate(ctx context.Context, leg models.OptionLeg, underlying float64) (float64, error)
}

// AlphaVantage fetches stock quotes from Alpha Vantage. It has no option data,
// so marks come from an estimator (Gemini when configured) or the local pricer,
// using the underlying prices from the latest stock fetch.
type AlphaVantage struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	logger      *logrus.Logger
	concurrency int
	estimator   OptionEstimator
	now         func() time.Time

	mu          sync.RWMutex
	underlyings map[string]float64
}

// NewAlphaVantage creates the client. Without an estimator, option marks come from PriceOption.
func NewAlphaVantage(apiKey string, opts Options, estimator OptionEstimator) *AlphaVantage {
	opts = opts.withDefaults()
	return &AlphaVantage{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(opts.AlphaVantageURL, "/"),
		client:      opts.HTTPClient,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		estimator:   estimator,
		now:         opts.Now,
		underlyings: make(map[string]float64),
	}
}

// FetchStockPrices requests GLOBAL_QUOTE per ticker. Symbols without data are omitted.
func (a *AlphaVantage) FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	results := make([]*models.StockPriceUpdate, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			u, err := a.fetchQuote(gctx, ticker)
			if err != nil {
				return err
			}
			results[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.StockPriceUpdate, 0, len(tickers))
	a.mu.Lock()
	for _, u := range results {
		if u == nil {
			continue
		}
		a.underlyings[u.Ticker] = u.Price
		out = append(out, *u)
	}
	a.mu.Unlock()
	return out, nil
}

func (a *AlphaVantage) fetchQuote(ctx context.Context, ticker string) (*models.StockPriceUpdate, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", ticker)
	q.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage request for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage read for %s: %w", ticker, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var jobj map[string]any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return nil, fmt.Errorf("alpha vantage decode for %s: %w", ticker, err)
	}

	// Throttling and key problems come back as 200 with a message field.
	if msg, ok := jobj["Note"].(string); ok {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if msg, ok := jobj["Information"].(string); ok {
		if strings.Contains(strings.ToLower(msg), "api key") {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if msg, ok := jobj["Error Message"].(string); ok {
		a.logger.WithField("ticker", ticker).WithField("error", msg).Warn("Alpha Vantage could not resolve symbol")
		return nil, nil
	}

	price, err := jsonFloat(avPricePath, jobj)
	if err != nil {
		a.logger.WithError(err).WithField("ticker", ticker).Warn("Alpha Vantage quote missing price")
		return nil, nil
	}
	prevClose, err := jsonFloat(avPreviousClosePath, jobj)
	if err != nil {
		a.logger.WithError(err).WithField("ticker", ticker).Warn("Alpha Vantage quote missing previous close")
		return nil, nil
	}

	return &models.StockPriceUpdate{
		Ticker:        models.NormalizeTicker(ticker),
		Price:         price,
		PreviousClose: prevClose,
	}, nil
}

// jsonFloat extracts a number (or numeric string) at path.
func jsonFloat(path string, jobj any) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", path, err)
	}
	// jsonpath may wrap a single answer in a list
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	switch v := jval.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", path, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parsing %q: not a number: %v", path, jval)
	}
}

// FetchOptionPrices estimates marks for legs whose underlying was fetched.
func (a *AlphaVantage) FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	results := make([]*models.OptionPriceUpdate, len(legs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, leg := range legs {
		a.mu.RLock()
		underlying, ok := a.underlyings[leg.Ticker]
		a.mu.RUnlock()
		if !ok {
			continue
		}

		g.Go(func() error {
			mark, err := a.estimate(gctx, leg, underlying)
			if err != nil {
				return err
			}
			if mark >= 0 {
				results[i] = &models.OptionPriceUpdate{ID: leg.ID, CurrentPrice: mark}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.OptionPriceUpdate, 0, len(legs))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// estimate returns -1 when the leg cannot be priced.
func (a *AlphaVantage) estimate(ctx context.Context, leg models.OptionLeg, underlying float64) (float64, error) {
	if a.estimator != nil {
		return a.estimator.Estimate(ctx, leg, underlying)
	}
	mark, ok := PriceOption(leg, underlying, a.now())
	if !ok {
		return -1, nil
	}
	return mark, nil
}

var _ Provider = (*AlphaVantage)(nil)
