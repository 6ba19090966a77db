package models

import "github.com/shopspring/decimal"

// Naked short option requirement as a share of strike notional, with a floor.
var (
	shortMarginRate  = decimal.NewFromFloat(0.20)
	shortMarginFloor = decimal.NewFromFloat(0.10)
)

// EstimateMargin approximates the buying-power requirement of an open strategy.
// Each short leg needs 20% of its strike notional less the premium received,
// never below 10% of notional. Long legs are paid in full at entry and add nothing.
func EstimateMargin(s OptionStrategy) float64 {
	total := decimal.Zero
	for _, leg := range s.Legs {
		if leg.Action != ActionSell {
			continue
		}
		notional := ContractValue(leg.Strike, leg.Contracts)
		premium := ContractValue(leg.PurchasePrice, leg.Contracts)
		req := decimal.Max(notional.Mul(shortMarginRate).Sub(premium), notional.Mul(shortMarginFloor))
		total = total.Add(req)
	}
	return total.InexactFloat64()
}
