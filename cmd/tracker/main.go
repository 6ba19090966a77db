// Command tracker manages an options portfolio from the terminal and serves it over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&serveCmd{}, "server")
	c.Register(&refreshCmd{}, "server")

	c.Register(&summaryCmd{}, "reports")
	c.Register(&positionsCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")

	c.Register(&accountsCmd{}, "accounts")
	c.Register(&addAccountCmd{}, "accounts")
	c.Register(&deleteAccountCmd{}, "accounts")

	c.Register(&openCmd{}, "strategies")
	c.Register(&editCmd{}, "strategies")
	c.Register(&rollCmd{}, "strategies")
	c.Register(&closeCmd{}, "strategies")

	c.Register(&watchCmd{}, "watchlist")
	c.Register(&unwatchCmd{}, "watchlist")
	c.Register(&alertCmd{}, "watchlist")
	c.Register(&unalertCmd{}, "watchlist")

	c.Register(&providerCmd{}, "settings")
	c.Register(&auditCmd{}, "maintenance")
}
