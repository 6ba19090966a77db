package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/report"
)

type watchCmd struct{}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "add tickers to the watchlist, or show it" }
func (*watchCmd) Usage() string {
	return `tracker watch [ticker...]

  Without arguments, displays the watchlist and its latest quotes.
`
}
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (*watchCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	for _, t := range f.Args() {
		added, err := a.ledger.AddToWatchlist(t)
		if err != nil {
			printError(err)
			return subcommands.ExitFailure
		}
		if !added {
			fmt.Printf("%s is already watched\n", models.NormalizeTicker(t))
		}
	}
	if f.NArg() == 0 {
		printMarkdown(report.Watchlist(a.ledger.Watchlist(), a.ledger.ManualWatchlist()))
		printMarkdown(report.Alerts(a.ledger.Alerts()))
	}
	return subcommands.ExitSuccess
}

type unwatchCmd struct{}

func (*unwatchCmd) Name() string     { return "unwatch" }
func (*unwatchCmd) Synopsis() string { return "remove tickers from the watchlist" }
func (*unwatchCmd) Usage() string {
	return `tracker unwatch <ticker>...
`
}
func (*unwatchCmd) SetFlags(*flag.FlagSet) {}

func (*unwatchCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	for _, t := range f.Args() {
		if err := a.ledger.RemoveFromWatchlist(t); err != nil {
			printError(err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

type alertCmd struct{}

func (*alertCmd) Name() string     { return "alert" }
func (*alertCmd) Synopsis() string { return "create a price alert" }
func (*alertCmd) Usage() string {
	return `tracker alert <ticker> <above|below> <price>

  The alert fires once when a refresh sees the price at or past the target.
`
}
func (*alertCmd) SetFlags(*flag.FlagSet) {}

func (*alertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	target, err := strconv.ParseFloat(f.Arg(2), 64)
	if err != nil {
		printError(fmt.Errorf("invalid price %q", f.Arg(2)))
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	alert, err := a.ledger.AddAlert(f.Arg(0), target, models.AlertCondition(f.Arg(1)))
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	fmt.Println(alert.ID)
	return subcommands.ExitSuccess
}

type unalertCmd struct{}

func (*unalertCmd) Name() string     { return "unalert" }
func (*unalertCmd) Synopsis() string { return "delete a price alert" }
func (*unalertCmd) Usage() string {
	return `tracker unalert <alert-id>
`
}
func (*unalertCmd) SetFlags(*flag.FlagSet) {}

func (*unalertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.ledger.DeleteAlert(f.Arg(0)); err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
