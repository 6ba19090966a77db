package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

type providerCmd struct {
	keys models.APIKeys
}

func (*providerCmd) Name() string     { return "provider" }
func (*providerCmd) Synopsis() string { return "show or select the quote provider" }
func (*providerCmd) Usage() string {
	return `tracker provider [-alpha-vantage key] [-alpaca-key k -alpaca-secret s] [-tradier token] [-gemini key] [name]

  Names: alphaVantage, alpaca, tradier, simulated. Without a name, shows the provider in use.
`
}

func (c *providerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.keys.AlphaVantage, "alpha-vantage", "", "Alpha Vantage API key")
	f.StringVar(&c.keys.AlpacaKey, "alpaca-key", "", "Alpaca API key id")
	f.StringVar(&c.keys.AlpacaSecret, "alpaca-secret", "", "Alpaca API secret")
	f.StringVar(&c.keys.Tradier, "tradier", "", "Tradier access token")
	f.StringVar(&c.keys.Gemini, "gemini", "", "Gemini API key for option estimates")
}

func (c *providerCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if f.NArg() == 1 {
		settings := models.ProviderSettings{Provider: models.ProviderName(f.Arg(0)), Keys: c.keys}
		if err := a.ledger.SetProviderSettings(settings); err != nil {
			printError(err)
			return subcommands.ExitFailure
		}
	}

	s := a.ledger.Settings()
	status := "configured"
	if !s.Configured() {
		status = "missing API keys"
	}
	fmt.Printf("%s (%s)\n", s.Provider, status)
	return subcommands.ExitSuccess
}
