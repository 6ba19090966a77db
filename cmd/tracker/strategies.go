package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/report"
	"github.com/eddiefleurent/options_tracker/internal/util"
)

// readStrategyInput decodes a strategy from a JSON file, or stdin for "-".
func readStrategyInput(path string, stdin io.Reader) (models.StrategyInput, error) {
	var in models.StrategyInput
	r := stdin
	if path != "-" {
		f, err := os.Open(path) // #nosec G304 -- path is supplied by the user on the command line
		if err != nil {
			return in, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("decoding strategy: %w", err)
	}
	return in, nil
}

// parseClosingLegs parses "legID=price" arguments.
func parseClosingLegs(args []string) ([]ledger.ClosingLeg, error) {
	legs := make([]ledger.ClosingLeg, 0, len(args))
	for _, arg := range args {
		id, price, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("expected legID=price, got %q", arg)
		}
		p, err := strconv.ParseFloat(price, 64)
		if err != nil {
			return nil, fmt.Errorf("leg %s: invalid price %q", id, price)
		}
		legs = append(legs, ledger.ClosingLeg{LegID: id, ClosingPrice: p})
	}
	return legs, nil
}

type openCmd struct {
	file    string
	account string
}

func (*openCmd) Name() string     { return "open" }
func (*openCmd) Synopsis() string { return "open a strategy described in JSON" }
func (*openCmd) Usage() string {
	return `tracker open [-f file] [-account id]

  Reads {"name","accountId","openDate","legs":[{"ticker","type","action",
  "strike","expiration","purchasePrice","contracts"}]} from -f, or stdin.
`
}

func (c *openCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "-", "Strategy JSON file, '-' for stdin")
	f.StringVar(&c.account, "account", "", "Account id, overrides accountId")
}

func (c *openCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in, err := readStrategyInput(c.file, os.Stdin)
	if err != nil {
		printError(err)
		return subcommands.ExitUsageError
	}
	if c.account != "" {
		in.AccountID = c.account
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	s, err := a.ledger.OpenStrategy(in)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Positions([]models.OptionStrategy{s}, a.ledger.Accounts()))
	fmt.Println(s.ID)
	return subcommands.ExitSuccess
}

type editCmd struct {
	file string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "replace the legs and details of an open strategy" }
func (*editCmd) Usage() string {
	return `tracker edit [-f file] <strategy-id>

  Takes the same JSON as open. Legs matching an existing leg by ticker,
  strike and type keep its id.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "-", "Strategy JSON file, '-' for stdin")
}

func (c *editCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	in, err := readStrategyInput(c.file, os.Stdin)
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

	applied, err := a.ledger.EditStrategy(f.Arg(0), in)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	if !applied {
		fmt.Fprintf(os.Stderr, "No open strategy %s, nothing changed\n", f.Arg(0))
	}
	return subcommands.ExitSuccess
}

type rollCmd struct {
	in ledger.RollInput
}

func (*rollCmd) Name() string     { return "roll" }
func (*rollCmd) Synopsis() string { return "roll a single-leg strategy to a new strike and expiration" }
func (*rollCmd) Usage() string {
	return `tracker roll -strike k -exp YYYY-MM-DD -premium p <strategy-id>

  The premium is the net credit (positive) or debit (negative) of the roll.
`
}

func (c *rollCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.in.NewStrike, "strike", 0, "New strike")
	f.StringVar(&c.in.NewExpiration, "exp", "", "New expiration date")
	f.Float64Var(&c.in.RollPremium, "premium", 0, "Net roll premium per share")
}

func (c *rollCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	s, err := a.ledger.RollStrategy(f.Arg(0), c.in)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Positions([]models.OptionStrategy{s}, a.ledger.Accounts()))
	return subcommands.ExitSuccess
}

type closeCmd struct{}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "close a strategy at the given leg prices" }
func (*closeCmd) Usage() string {
	return `tracker close <strategy-id> <legID=price>...

  Legs left out are retired without contributing realized P/L.
`
}
func (*closeCmd) SetFlags(*flag.FlagSet) {}

func (*closeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	legs, err := parseClosingLegs(f.Args()[1:])
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

	res, err := a.ledger.CloseStrategy(f.Arg(0), legs)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Closed %s for %s realized\n", res.Strategy.Name, util.SignedUSD(res.Strategy.TotalPL))
	if len(res.OmittedLegIDs) > 0 {
		fmt.Printf("Legs closed without a price: %s\n", strings.Join(res.OmittedLegIDs, ", "))
	}
	if len(res.WatchlistAdded) > 0 {
		fmt.Printf("Now watching: %s\n", strings.Join(res.WatchlistAdded, ", "))
	}
	return subcommands.ExitSuccess
}
