package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type accountsCmd struct{}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list brokerage accounts" }
func (*accountsCmd) Usage() string {
	return `tracker accounts
`
}
func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (*accountsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	for _, acc := range a.ledger.Accounts() {
		fmt.Printf("%s\t%s\t%s\n", acc.ID, acc.Name, acc.Broker)
	}
	return subcommands.ExitSuccess
}

type addAccountCmd struct {
	broker string
}

func (*addAccountCmd) Name() string     { return "add-account" }
func (*addAccountCmd) Synopsis() string { return "create a brokerage account" }
func (*addAccountCmd) Usage() string {
	return `tracker add-account [-broker name] <name>
`
}

func (c *addAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.broker, "broker", "", "Broker name")
}

func (c *addAccountCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	acc, err := a.ledger.AddAccount(f.Arg(0), c.broker)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	fmt.Println(acc.ID)
	return subcommands.ExitSuccess
}

type deleteAccountCmd struct{}

func (*deleteAccountCmd) Name() string     { return "delete-account" }
func (*deleteAccountCmd) Synopsis() string { return "delete an account without strategies" }
func (*deleteAccountCmd) Usage() string {
	return `tracker delete-account <id>
`
}
func (*deleteAccountCmd) SetFlags(*flag.FlagSet) {}

func (*deleteAccountCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if err := a.ledger.DeleteAccount(f.Arg(0)); err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
