package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/eddiefleurent/options_tracker/internal/report"
)

type auditCmd struct {
	asJSON bool
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "check stored state for inconsistencies" }
func (*auditCmd) Usage() string {
	return `tracker audit [-json]

  Reports orphaned accounts, expired or invalid legs, duplicate leg ids
  and incomplete closes. Exits 1 when issues are found.
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print the audit as JSON")
}

func (c *auditCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	r := a.ledger.Audit()
	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			printError(err)
			return subcommands.ExitFailure
		}
	} else {
		printMarkdown(report.Audit(r))
	}
	if len(r.Issues) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
