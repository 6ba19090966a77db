package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

var accounts = []models.Account{{ID: "a1", Name: "Main", Broker: "Schwab"}}

func TestSummary(t *testing.T) {
	md := Summary(ledger.Summary{
		AccountID:    "a1",
		Period:       views.PeriodCustom,
		Range:        views.DateRange{Start: "2026-09-18", End: "2026-10-18"},
		UnrealizedPL: 1250.5,
		RealizedPL:   -40,
		OpenCount:    2,
		ClosedCount:  1,
	}, accounts)

	assert.Contains(t, md, "# P/L summary: Main")
	assert.Contains(t, md, "| Unrealized P/L | +$1,250.50 |")
	assert.Contains(t, md, "| Realized P/L (2026-09-18 to 2026-10-18) | -$40.00 |")
	assert.Contains(t, md, "| Open strategies | 2 |")

	all := Summary(ledger.Summary{AccountID: views.AllAccounts, Period: views.PeriodYTD}, nil)
	assert.Contains(t, all, "All accounts")
	assert.Contains(t, all, "Year to date")
}

func TestPositions(t *testing.T) {
	md := Positions([]models.OptionStrategy{{
		ID:        "s1",
		Name:      "Iron | condor",
		AccountID: "a1",
		TotalPL:   705,
		Legs: []models.OptionLeg{
			{Ticker: "SPY", Type: models.OptionTypePut, Action: models.ActionSell, Strike: 450.5, Expiration: "2026-12-18", PurchasePrice: 3, Contracts: 2, PL: 600},
			{Ticker: "SPY", Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 440, Expiration: "2026-12-18", PurchasePrice: 1.5, Contracts: 2, PL: -300},
		},
	}}, accounts)

	assert.Contains(t, md, `| Iron \| condor | Main | SELL 2x SPY 450.5 PUT 2026-12-18 | $3.00 | $0.00 | +$600.00 | +$705.00 |`)
	assert.Contains(t, md, "|  |  | BUY 2x SPY 440 PUT 2026-12-18 | $1.50 | $0.00 | -$300.00 |  |")

	assert.Contains(t, Positions(nil, nil), "No open strategies")
}

func TestClosedAndHistory(t *testing.T) {
	realized := 125.0
	md := Closed([]models.OptionStrategy{{
		Name: "AAPL call", AccountID: "gone", OpenDate: "2026-10-01", CloseDate: "2026-10-18", RealizedPL: &realized,
	}}, accounts)
	assert.Contains(t, md, "| AAPL call | gone | 2026-10-01 | 2026-10-18 | +$125.00 |")

	h := History([]models.PLHistoryData{{Date: "2026-10-18", UnrealizedPL: -12.345, RealizedPL: 0}})
	assert.Contains(t, h, "| 2026-10-18 | -$12.35 | $0.00 |")
}

func TestWatchlistAndAlerts(t *testing.T) {
	assert.Contains(t, Watchlist(nil, nil), "Nothing watched")
	assert.Contains(t, Watchlist(nil, []string{"AAPL", "MSFT"}), "Watching AAPL, MSFT.")

	md := Watchlist([]models.WatchlistItem{{Ticker: "AAPL", Price: 230, PreviousClose: 225, Change: 5, ChangePercent: 2.2222}}, nil)
	assert.Contains(t, md, "| AAPL | $230.00 | +$5.00 | +2.22% |")

	a := Alerts([]models.PriceAlert{{ID: "x1", Ticker: "NVDA", Condition: models.ConditionAbove, TargetPrice: 150, Status: models.AlertActive}})
	assert.Contains(t, a, "| x1 | NVDA | above | $150.00 | active |")
}

func TestRefresh(t *testing.T) {
	md := Refresh(ledger.RefreshResult{
		Tickers: 3, StockQuotes: 2, OptionMarks: 4, Snapshot: true,
		Triggered: []models.PriceAlert{{Ticker: "NVDA", Condition: models.ConditionAbove, TargetPrice: 150}},
	})
	assert.Contains(t, md, "- 2 of 3 tickers quoted")
	assert.Contains(t, md, "- 4 option legs marked")
	assert.Contains(t, md, "today's unrealized P/L recorded")
	assert.Contains(t, md, "**Alert:** NVDA is above $150.00")
}

func TestRender(t *testing.T) {
	out, err := Render("# Title\n\nbody\n", 40)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body")
}

func TestAudit(t *testing.T) {
	clean := Audit(ledger.AuditReport{Accounts: 1, Open: 2, OpenLegs: 3})
	assert.Contains(t, clean, "1 accounts, 2 open (3 legs), 0 closed")
	assert.Contains(t, clean, "No issues found.")

	md := Audit(ledger.AuditReport{Issues: []ledger.Issue{
		{Kind: ledger.IssueExpiredLeg, StrategyID: "s1", Detail: "leg l1 SPY expired 2026-09-19 and is still open"},
	}})
	assert.Contains(t, md, "| expired_leg | s1 | leg l1 SPY expired 2026-09-19 and is still open |")
	assert.NotContains(t, md, "No issues found.")
}
