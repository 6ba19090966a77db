package util

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD converts a dollar amount to money, rounded half away from zero to the cent.
func USD(amount float64) *money.Money {
	cents := decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD)
}

// FormatUSD renders amount as "$1,234.50" or "-$1,234.50".
func FormatUSD(amount float64) string {
	return USD(amount).Display()
}

// SignedUSD is FormatUSD with a leading "+" on gains.
func SignedUSD(amount float64) string {
	m := USD(amount)
	if m.IsPositive() {
		return "+" + m.Display()
	}
	return m.Display()
}
