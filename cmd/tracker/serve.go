package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/api"
	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/report"
)

type serveCmd struct {
	port     int
	interval time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the JSON API and refresh prices periodically" }
func (*serveCmd) Usage() string {
	return `tracker serve [-port n] [-refresh d]

  Serves the HTTP API. Prices refresh every -refresh interval (0 disables).
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", 0, "Port to listen on (defaults to server.port)")
	f.DurationVar(&c.interval, "refresh", -1, "Refresh interval (defaults to server.refresh_interval)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	port := a.cfg.Server.Port
	if c.port > 0 {
		port = c.port
	}
	interval := a.cfg.Server.RefreshInterval
	if c.interval >= 0 {
		interval = c.interval
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(api.Config{Port: port, AuthToken: a.cfg.Server.AuthToken}, a.ledger, a.logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Stops before the deferred Close so no refresh writes to closed storage.
	stopRefresh := startRefreshLoop(ctx, a.ledger, a.logger, interval)
	defer stopRefresh()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			printError(err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received, stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Server shutdown failed")
		return subcommands.ExitFailure
	}
	a.logger.Info("Server stopped")
	return subcommands.ExitSuccess
}

type refresher interface {
	Refresh(ctx context.Context) (ledger.RefreshResult, error)
}

// startRefreshLoop runs refreshLoop in the background. The returned func
// cancels it and waits for an in-flight refresh to finish.
func startRefreshLoop(ctx context.Context, r refresher, logger *logrus.Logger, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if interval > 0 {
			refreshLoop(ctx, r, logger, interval)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// refreshLoop refreshes immediately and then on every tick until ctx ends.
func refreshLoop(ctx context.Context, r refresher, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := r.Refresh(ctx)
		var cfgErr *ledger.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			logger.Warn(err.Error())
		case err != nil:
			logger.WithError(err).Error("Scheduled refresh failed")
		default:
			logger.WithField("triggered", len(res.Triggered)).Debug("Scheduled refresh complete")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch latest prices once" }
func (*refreshCmd) Usage() string {
	return `tracker refresh

  Fetches quotes for every watched or held ticker and marks for every open leg.
`
}
func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := a.ledger.Refresh(ctx)
	if err != nil {
		printError(err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Refresh(res))
	return subcommands.ExitSuccess
}
