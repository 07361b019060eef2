package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// Guarded wraps a MarketData with a rate limiter and a circuit breaker.
// Invalid-instrument and cancellation errors never trip the breaker.
type Guarded struct {
	next    model.MarketData
	limiter model.RateLimiter
	breaker *CircuitBreaker
}

// NewGuarded decorates next. limiter and breaker may be nil.
func NewGuarded(next model.MarketData, limiter model.RateLimiter, breaker *CircuitBreaker) *Guarded {
	if breaker != nil && breaker.IsFailure == nil {
		breaker.IsFailure = IsTransportFailure
	}
	return &Guarded{next: next, limiter: limiter, breaker: breaker}
}

// FetchCandles waits for a rate-limit token, then calls the wrapped client.
func (g *Guarded) FetchCandles(ctx context.Context, inst model.Instrument, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.breaker == nil {
		return g.next.FetchCandles(ctx, inst, tf, from, to)
	}

	var candles []model.Candle
	err := g.breaker.Execute(func() error {
		var ferr error
		candles, ferr = g.next.FetchCandles(ctx, inst, tf, from, to)
		return ferr
	})
	return candles, err
}

// IsTransportFailure reports whether err should count against a breaker.
func IsTransportFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, model.ErrInvalidInstrument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
