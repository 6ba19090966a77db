package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/retry"
)

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultBreakerSettings trips after 60% failures over at least 5 calls.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:  3,
	Interval:     60 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

func newCircuitBreaker(name string, settings BreakerSettings, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// Caller mistakes say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrMissingCredentials) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// resilient retries transient failures inside a circuit breaker. One breaker
// attempt covers the full retry sequence.
type resilient struct {
	name    string
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	retry   *retry.Client
}

func newResilient(name string, inner Provider, breaker *gobreaker.CircuitBreaker, rc *retry.Client) *resilient {
	return &resilient{name: name, inner: inner, breaker: breaker, retry: rc}
}

func (r *resilient) FetchStockPrices(ctx context.Context, tickers []string) ([]models.StockPriceUpdate, error) {
	return execCircuitBreaker(r.breaker, func() ([]models.StockPriceUpdate, error) {
		return retry.Do(ctx, r.retry, r.name+" stock quotes", func(ctx context.Context) ([]models.StockPriceUpdate, error) {
			return r.inner.FetchStockPrices(ctx, tickers)
		})
	})
}

func (r *resilient) FetchOptionPrices(ctx context.Context, legs []models.OptionLeg) ([]models.OptionPriceUpdate, error) {
	return execCircuitBreaker(r.breaker, func() ([]models.OptionPriceUpdate, error) {
		return retry.Do(ctx, r.retry, r.name+" option marks", func(ctx context.Context) ([]models.OptionPriceUpdate, error) {
			return r.inner.FetchOptionPrices(ctx, legs)
		})
	})
}

var _ Provider = (*resilient)(nil)
