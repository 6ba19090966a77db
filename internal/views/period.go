package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// Period selects the window for realized P/L aggregation.
type Period string

const (
	PeriodToday   Period = "today"
	PeriodLast7   Period = "last7"
	PeriodLast30  Period = "last30"
	PeriodLast90  Period = "last90"
	PeriodLast365 Period = "last365"
	PeriodYTD     Period = "ytd"
	PeriodAll     Period = "all"
	PeriodCustom  Period = "custom"
)

// ParsePeriod parses a period name, case-insensitively.
func ParsePeriod(p string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(p))) {
	case PeriodToday, "":
		return PeriodToday, nil
	case PeriodLast7:
		return PeriodLast7, nil
	case PeriodLast30:
		return PeriodLast30, nil
	case PeriodLast90:
		return PeriodLast90, nil
	case PeriodLast365:
		return PeriodLast365, nil
	case PeriodYTD:
		return PeriodYTD, nil
	case PeriodAll:
		return PeriodAll, nil
	case PeriodCustom:
		return PeriodCustom, nil
	default:
		return PeriodToday, fmt.Errorf("unknown period %s", p)
	}
}

// DateRange is an inclusive YYYY-MM-DD range used by PeriodCustom.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DefaultCustomRange is the last 30 days ending today.
func DefaultCustomRange(now time.Time) DateRange {
	return DateRange{
		Start: now.AddDate(0, 0, -30).Format(models.DateLayout),
		End:   now.Format(models.DateLayout),
	}
}

// InPeriod reports whether a YYYY-MM-DD close date falls inside the period as seen at now.
// Dates compare as strings, which matches calendar order for this layout.
func InPeriod(closeDate string, period Period, now time.Time, custom DateRange) bool {
	if closeDate == "" {
		return false
	}
	day := func(t time.Time) string { return t.Format(models.DateLayout) }

	switch period {
	case PeriodToday:
		return closeDate == day(now)
	case PeriodLast7:
		return closeDate >= day(now.AddDate(0, 0, -6))
	case PeriodLast30:
		return closeDate >= day(now.AddDate(0, 0, -29))
	case PeriodLast90:
		return closeDate >= day(now.AddDate(0, 0, -89))
	case PeriodLast365:
		return closeDate >= day(now.AddDate(-1, 0, 0))
	case PeriodYTD:
		return closeDate >= fmt.Sprintf("%04d-01-01", now.Year())
	case PeriodCustom:
		if custom.Start == "" || custom.End == "" {
			return false
		}
		return closeDate >= custom.Start && closeDate <= custom.End
	default:
		return true
	}
}

// RealizedPL sums realized P/L over the closed strategies that fall in the period.
func RealizedPL(closed []models.OptionStrategy, period Period, now time.Time, custom DateRange) float64 {
	total := decimal.Zero
	for _, s := range closed {
		if !InPeriod(s.CloseDate, period, now, custom) {
			continue
		}
		if s.RealizedPL != nil {
			total = total.Add(decimal.NewFromFloat(*s.RealizedPL))
		}
	}
	return total.InexactFloat64()
}

// UnrealizedPL sums totalPL across open strategies.
func UnrealizedPL(open []models.OptionStrategy) float64 {
	total := decimal.Zero
	for _, s := range open {
		total = total.Add(decimal.NewFromFloat(s.TotalPL))
	}
	return total.InexactFloat64()
}
