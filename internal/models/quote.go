package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPriceUpdate is one underlying quote from a provider.
type StockPriceUpdate struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
}

// OptionPriceUpdate is one option mark keyed by leg id.
type OptionPriceUpdate struct {
	ID           string  `json:"id"`
	CurrentPrice float64 `json:"currentPrice"`
}

// StockQuote is the latest known price for a ticker.
type StockQuote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// WatchlistItem is a derived daily-change row for a watched ticker.
type WatchlistItem struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// percentPrecision keeps more digits than a float64 can hold.
const percentPrecision = 20

// NewWatchlistItem derives change and change percent from a quote.
// A zero previous close yields a zero percentage.
func NewWatchlistItem(u StockPriceUpdate) WatchlistItem {
	price := decimal.NewFromFloat(u.Price)
	prev := decimal.NewFromFloat(u.PreviousClose)
	change := price.Sub(prev)

	pct := decimal.Zero
	if !prev.IsZero() {
		pct = change.Mul(decimal.NewFromInt(100)).DivRound(prev, percentPrecision)
	}
	return WatchlistItem{
		Ticker:        u.Ticker,
		Price:         u.Price,
		PreviousClose: u.PreviousClose,
		Change:        change.InexactFloat64(),
		ChangePercent: pct.InexactFloat64(),
	}
}
