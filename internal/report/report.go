// Package report renders ledger views as Markdown for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/util"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

// Render styles markdown for a terminal of the given width.
func Render(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	return r.Render(md)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func table(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
	for _, row := range rows {
		for i := range row {
			row[i] = cell(row[i])
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
}

func accountName(accounts []models.Account, id string) string {
	for _, a := range accounts {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}

func periodLabel(s ledger.Summary) string {
	switch s.Period {
	case views.PeriodToday:
		return "Today"
	case views.PeriodLast7:
		return "Last 7 days"
	case views.PeriodLast30:
		return "Last 30 days"
	case views.PeriodLast90:
		return "Last 90 days"
	case views.PeriodLast365:
		return "Last 365 days"
	case views.PeriodYTD:
		return "Year to date"
	case views.PeriodAll:
		return "All time"
	case views.PeriodCustom:
		return fmt.Sprintf("%s to %s", s.Range.Start, s.Range.End)
	default:
		return string(s.Period)
	}
}

// Summary renders the P/L headline for an account filter.
func Summary(s ledger.Summary, accounts []models.Account) string {
	var b strings.Builder
	scope := "All accounts"
	if s.AccountID != views.AllAccounts {
		scope = accountName(accounts, s.AccountID)
	}
	fmt.Fprintf(&b, "# P/L summary: %s\n\n", scope)
	table(&b, []string{"Metric", "Value"}, [][]string{
		{"Unrealized P/L", util.SignedUSD(s.UnrealizedPL)},
		{"Realized P/L (" + periodLabel(s) + ")", util.SignedUSD(s.RealizedPL)},
		{"Open strategies", strconv.Itoa(s.OpenCount)},
		{"Closed in period", strconv.Itoa(s.ClosedCount)},
	})
	return b.String()
}

func legLine(l models.OptionLeg) string {
	return fmt.Sprintf("%s %dx %s %s %s %s",
		l.Action, l.Contracts, l.Ticker,
		strconv.FormatFloat(l.Strike, 'f', -1, 64), l.Type, l.Expiration)
}

// Positions renders open strategies, one row per leg.
func Positions(list []models.OptionStrategy, accounts []models.Account) string {
	var b strings.Builder
	b.WriteString("# Open strategies\n\n")
	if len(list) == 0 {
		b.WriteString("_No open strategies._\n")
		return b.String()
	}
	var rows [][]string
	for _, s := range list {
		for i, l := range s.Legs {
			name, account, total := "", "", ""
			if i == 0 {
				name, account, total = s.Name, accountName(accounts, s.AccountID), util.SignedUSD(s.TotalPL)
			}
			rows = append(rows, []string{
				name, account, legLine(l),
				util.FormatUSD(l.PurchasePrice), util.FormatUSD(l.CurrentPrice),
				util.SignedUSD(l.PL), total,
			})
		}
	}
	table(&b, []string{"Strategy", "Account", "Leg", "Entry", "Mark", "Leg P/L", "Total"}, rows)
	return b.String()
}

// Closed renders closed strategies with their realized P/L.
func Closed(list []models.OptionStrategy, accounts []models.Account) string {
	var b strings.Builder
	b.WriteString("# Closed strategies\n\n")
	if len(list) == 0 {
		b.WriteString("_No closed strategies._\n")
		return b.String()
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		realized := s.TotalPL
		if s.RealizedPL != nil {
			realized = *s.RealizedPL
		}
		rows = append(rows, []string{s.Name, accountName(accounts, s.AccountID), s.OpenDate, s.CloseDate, util.SignedUSD(realized)})
	}
	table(&b, []string{"Strategy", "Account", "Opened", "Closed", "Realized"}, rows)
	return b.String()
}

// Watchlist renders the latest quotes of watched and held tickers.
func Watchlist(items []models.WatchlistItem, manual []string) string {
	var b strings.Builder
	b.WriteString("# Watchlist\n\n")
	if len(items) == 0 {
		if len(manual) == 0 {
			b.WriteString("_Nothing watched._\n")
			return b.String()
		}
		fmt.Fprintf(&b, "Watching %s. Refresh to load quotes.\n", strings.Join(manual, ", "))
		return b.String()
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Ticker,
			util.FormatUSD(it.Price),
			util.SignedUSD(it.Change),
			fmt.Sprintf("%+.2f%%", it.ChangePercent),
		})
	}
	table(&b, []string{"Ticker", "Price", "Change", "Change %"}, rows)
	return b.String()
}

// Alerts renders price alerts.
func Alerts(alerts []models.PriceAlert) string {
	var b strings.Builder
	b.WriteString("# Price alerts\n\n")
	if len(alerts) == 0 {
		b.WriteString("_No alerts._\n")
		return b.String()
	}
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{a.ID, a.Ticker, string(a.Condition), util.FormatUSD(a.TargetPrice), string(a.Status)})
	}
	table(&b, []string{"ID", "Ticker", "Condition", "Target", "Status"}, rows)
	return b.String()
}

// History renders the daily P/L series.
func History(history []models.PLHistoryData) string {
	var b strings.Builder
	b.WriteString("# Daily P/L\n\n")
	if len(history) == 0 {
		b.WriteString("_No history yet._\n")
		return b.String()
	}
	rows := make([][]string, 0, len(history))
	for _, h := range history {
		rows = append(rows, []string{h.Date, util.SignedUSD(h.UnrealizedPL), util.SignedUSD(h.RealizedPL)})
	}
	table(&b, []string{"Date", "Unrealized", "Realized"}, rows)
	return b.String()
}

// Refresh renders the outcome of a price refresh.
func Refresh(res ledger.RefreshResult) string {
	var b strings.Builder
	b.WriteString("# Prices refreshed\n\n")
	fmt.Fprintf(&b, "- %d of %d tickers quoted\n", res.StockQuotes, res.Tickers)
	fmt.Fprintf(&b, "- %d option legs marked\n", res.OptionMarks)
	if res.Snapshot {
		b.WriteString("- today's unrealized P/L recorded\n")
	}
	for _, a := range res.Triggered {
		fmt.Fprintf(&b, "\n> **Alert:** %s is %s %s\n", a.Ticker, a.Condition, util.FormatUSD(a.TargetPrice))
	}
	return b.String()
}

// Audit lists the counts and issues from a state audit.
func Audit(r ledger.AuditReport) string {
	var b strings.Builder
	b.WriteString("## Audit\n\n")
	fmt.Fprintf(&b, "%d accounts, %d open (%d legs), %d closed, %d alerts, %d history days, %d tracked tickers.\n\n",
		r.Accounts, r.Open, r.OpenLegs, r.Closed, r.Alerts, r.HistoryDays, r.UniverseCount)
	if len(r.Issues) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}
	rows := make([][]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		rows = append(rows, []string{string(is.Kind), is.StrategyID, is.Detail})
	}
	table(&b, []string{"Kind", "Strategy", "Detail"}, rows)
	return b.String()
}
