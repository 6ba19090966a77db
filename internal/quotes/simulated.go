package quotes

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/util"
)

// Simulation parameters
const (
	simMinStart   = 20.0
	simStartRange = 480.0
	simMaxStepPct = 0.01 // per fetch, each direction
	simVolatility = 0.30
	simSpread     = 0.10
	simMinMark    = 0.01
)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

type simQuote struct {
	price         float64
	previousClose float64
}

// Simulator generates random-walk stock prices and option marks locally.
// It needs no credentials and keeps its walk across fetches.
type Simulator struct {
	mu     sync.Mutex
	quotes map[string]*simQuote
	now    func() time.Time
	random func() float64
}

// NewSimulator creates a simulator. A nil clock uses time.Now.
func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{
		quotes: make(map[string]*simQuote),
		now:    now,
		random: secureFloat64,
	}
}

// Seed fixes the starting price of a ticker.
func (s *Simulator) Seed(ticker string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[models.NormalizeTicker(ticker)] = &simQuote{price: price, previousClose: price}
}

// step advances the walk for ticker and returns its quote. Caller holds mu.
func (s *Simulator) step(ticker string) simQuote {
	q, ok := s.quotes[ticker]
	if !ok {
		start := util.RoundToTick(simMinStart+s.random()*simStartRange, util.CentTick)
		q = &simQuote{price: start, previousClose: start}
		s.quotes[ticker] = q
		return *q
	}
	move := (s.random() - 0.5) * 2 * simMaxStepPct
	q.price = math.Max(util.CentTick, util.RoundToTick(q.price*(1+move), util.CentTick))
	return *q
}

// FetchStockPrices advances every ticker one step.
func (s *Simulator) FetchStockPrices(_ context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.StockPriceUpdate, 0, len(tickers))
	for _, t := range tickers {
		ticker := models.NormalizeTicker(t)
		if ticker == "" {
			continue
		}
		q := s.step(ticker)
		out = append(out, models.StockPriceUpdate{Ticker: ticker, Price: q.price, PreviousClose: q.previousClose})
	}
	return out, nil
}

// FetchOptionPrices prices each leg off the simulated underlying without advancing it.
func (s *Simulator) FetchOptionPrices(_ context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]models.OptionPriceUpdate, 0, len(legs))
	for _, leg := range legs {
		q, ok := s.quotes[leg.Ticker]
		if !ok {
			s.step(leg.Ticker)
			q = s.quotes[leg.Ticker]
		}
		mark, ok := PriceOption(leg, q.price, now)
		if !ok {
			continue
		}
		out = append(out, models.OptionPriceUpdate{ID: leg.ID, CurrentPrice: mark})
	}
	return out, nil
}

// PriceOption estimates a per-share option mark as intrinsic value plus a time
// value that decays with distance from the money and with time to expiration.
// ok is false when the leg cannot be priced.
func PriceOption(leg models.OptionLeg, underlying float64, now time.Time) (float64, bool) {
	if underlying <= 0 || leg.Strike <= 0 || math.IsNaN(underlying) || math.IsInf(underlying, 0) {
		return 0, false
	}
	exp, err := models.ParseDate(leg.Expiration)
	if err != nil {
		return 0, false
	}

	var intrinsic float64
	switch leg.Type {
	case models.OptionTypeCall:
		intrinsic = math.Max(0, underlying-leg.Strike)
	case models.OptionTypePut:
		intrinsic = math.Max(0, leg.Strike-underlying)
	default:
		return 0, false
	}

	// expiration is treated as end of day
	years := exp.Add(24*time.Hour).Sub(now).Hours() / (24 * 365)
	if years < 0 {
		years = 0
	}
	// ATM time value ~ 0.4 * S * sigma * sqrt(T), fading with moneyness
	distance := math.Abs(underlying-leg.Strike) / underlying
	timeValue := 0.4 * underlying * simVolatility * math.Sqrt(years) * math.Exp(-distance*5)

	fair := intrinsic + timeValue
	bid := util.FloorToTick(math.Max(0, fair-simSpread/2), util.CentTick)
	ask := util.CeilToTick(fair+simSpread/2, util.CentTick)
	mark, ok := util.Mid(bid, ask)
	if !ok {
		return simMinMark, true
	}
	return math.Max(simMinMark, mark), true
}

var _ Provider = (*Simulator)(nil)
