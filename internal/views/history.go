package views

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

func cloneHistory(history []models.PLHistoryData) []models.PLHistoryData {
	return append([]models.PLHistoryData(nil), history...)
}

func sortHistory(history []models.PLHistoryData) {
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date < history[j].Date })
}

func indexOfDate(history []models.PLHistoryData, date string) int {
	for i := range history {
		if history[i].Date == date {
			return i
		}
	}
	return -1
}

// UpsertUnrealized overwrites the unrealized snapshot for date, creating the
// entry when absent. Realized P/L of an existing entry is kept.
func UpsertUnrealized(history []models.PLHistoryData, date string, unrealized float64) []models.PLHistoryData {
	out := cloneHistory(history)
	if i := indexOfDate(out, date); i >= 0 {
		out[i].UnrealizedPL = unrealized
	} else {
		out = append(out, models.PLHistoryData{Date: date, UnrealizedPL: unrealized})
	}
	sortHistory(out)
	return out
}

// AddRealized accumulates amount into the realized P/L of date, creating the
// entry with zero unrealized P/L when absent.
func AddRealized(history []models.PLHistoryData, date string, amount float64) []models.PLHistoryData {
	out := cloneHistory(history)
	if i := indexOfDate(out, date); i >= 0 {
		out[i].RealizedPL = decimal.NewFromFloat(out[i].RealizedPL).
			Add(decimal.NewFromFloat(amount)).
			InexactFloat64()
	} else {
		out = append(out, models.PLHistoryData{Date: date, RealizedPL: amount})
	}
	sortHistory(out)
	return out
}

// NormalizeHistory merges duplicate dates (last unrealized wins, realized sums)
// and sorts ascending. Used on load, where stored data may predate these rules.
func NormalizeHistory(history []models.PLHistoryData) []models.PLHistoryData {
	out := make([]models.PLHistoryData, 0, len(history))
	for _, h := range history {
		if i := indexOfDate(out, h.Date); i >= 0 {
			out[i].UnrealizedPL = h.UnrealizedPL
			out[i].RealizedPL = decimal.NewFromFloat(out[i].RealizedPL).
				Add(decimal.NewFromFloat(h.RealizedPL)).
				InexactFloat64()
			continue
		}
		out = append(out, h)
	}
	sortHistory(out)
	return out
}
