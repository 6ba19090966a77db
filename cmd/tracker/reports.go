package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/report"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

type summaryCmd struct {
	account string
	period  string
	start   string
	end     string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display unrealized and realized P/L" }
func (*summaryCmd) Usage() string {
	return `tracker summary [-account id] [-period p] [-start date -end date]

  Periods: today, last7, last30, last90, last365, ytd, all, custom.
  A custom period without dates covers the last 30 days.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", views.AllAccounts, "Account id, or 'all'")
	f.StringVar(&c.period, "period", string(views.PeriodToday), "Realized P/L period")
	f.StringVar(&c.start, "start", "", "Custom period start (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "Custom period end (YYYY-MM-DD)")
}

// customRange fills unset bounds from the default custom range.
func customRange(def views.DateRange, start, end string) views.DateRange {
	if start != "" {
		def.Start = start
	}
	if end != "" {
		def.End = end
	}
	return def
}

func (c *summaryCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := views.ParsePeriod(c.period)
	if err != nil {
		printError(err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	var custom views.DateRange
	if period == views.PeriodCustom {
		custom = customRange(views.DefaultCustomRange(time.Now().In(a.cfg.Location())), c.start, c.end)
	}
	accounts := a.ledger.Accounts()
	printMarkdown(report.Summary(a.ledger.Summary(c.account, period, custom), accounts))
	return subcommands.ExitSuccess
}

type positionsCmd struct {
	account string
	closed  bool
	sort    string
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "list open or closed strategies" }
func (*positionsCmd) Usage() string {
	return `tracker positions [-account id] [-closed] [-sort key[,key...]]

  Each -sort key toggles the table sort once, so "-sort name,name" sorts by
  name descending.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", views.AllAccounts, "Account id, or 'all'")
	f.BoolVar(&c.closed, "closed", false, "List closed strategies")
	f.StringVar(&c.sort, "sort", "", "Sort keys to toggle, comma separated")
}

func (c *positionsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	table := ledger.TableOpen
	if c.closed {
		table = ledger.TableClosed
	}
	if c.sort != "" {
		for _, key := range strings.Split(c.sort, ",") {
			if _, err := a.ledger.ToggleSort(table, views.SortKey(strings.TrimSpace(key))); err != nil {
				printError(err)
				return subcommands.ExitUsageError
			}
		}
	}

	accounts := a.ledger.Accounts()
	if c.closed {
		printMarkdown(report.Closed(a.ledger.ClosedStrategies(c.account), accounts))
		return subcommands.ExitSuccess
	}
	printMarkdown(report.Positions(a.ledger.OpenStrategies(c.account), accounts))
	return subcommands.ExitSuccess
}

type historyCmd struct{}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the daily P/L history" }
func (*historyCmd) Usage() string {
	return `tracker history

  Displays one row per day with unrealized and realized P/L.
`
}
func (*historyCmd) SetFlags(*flag.FlagSet) {}

func (*historyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	printMarkdown(report.History(a.ledger.History()))
	return subcommands.ExitSuccess
}
