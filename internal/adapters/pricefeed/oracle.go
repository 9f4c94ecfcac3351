// Package pricefeed implements ports.PriceOracle as an ordered chain of quote sources,
// each behind its own circuit breaker, with an optional shared cache and an optional
// simulated fallback for paper trading.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"solTradeBot/internal/metrics"
	"solTradeBot/internal/ports"
)

const (
	defaultBreakerTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
)

// Config holds the oracle options.
type Config struct {
	Cache          ports.PriceCache // nil disables caching
	CacheTTL       time.Duration
	Simulator      *Simulator // nil unless SIMULATION_MODE is on
	BreakerTimeout time.Duration
	// Consecutive failures before a source is skipped for BreakerTimeout.
	BreakerFailures uint32
	Metrics         *metrics.Registry
}

type guardedSource struct {
	src     Source
	breaker *gobreaker.CircuitBreaker
}

// Oracle tries each source in order and returns the first valid quote.
type Oracle struct {
	sources []guardedSource
	cfg     Config
	logger  ports.Logger
}

// NewOracle builds the chain. At least one source or a simulator is required.
func NewOracle(cfg Config, logger ports.Logger, sources ...Source) (*Oracle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for price oracle: %w", ports.ErrConfigurationError)
	}
	if len(sources) == 0 && cfg.Simulator == nil {
		return nil, fmt.Errorf("price oracle needs at least one source: %w", ports.ErrConfigurationError)
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}

	o := &Oracle{cfg: cfg, logger: logger}
	for _, src := range sources {
		name := src.Name()
		failures := cfg.BreakerFailures
		o.sources = append(o.sources, guardedSource{
			src: src,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        name,
				MaxRequests: 1,
				Timeout:     cfg.BreakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= failures
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Warn(context.Background(), "Price source breaker changed state", map[string]interface{}{
						"source": name, "from": from.String(), "to": to.String(),
					})
				},
				// A missing quote is an answer, not an outage.
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, ports.ErrPriceUnavailable) || errors.Is(err, ports.ErrNotFound)
				},
			}),
		})
	}
	return o, nil
}

// Price returns SOL per token from the first source that answers.
func (o *Oracle) Price(ctx context.Context, token string) (float64, error) {
	op := "Oracle.Price"

	if o.cfg.Cache != nil {
		price, err := o.cfg.Cache.GetPrice(ctx, token)
		if err == nil && price > 0 {
			return price, nil
		}
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			o.logger.Warn(ctx, op+": price cache read failed", map[string]interface{}{"token": token, "error": err.Error()})
		}
	}

	var errs []error
	for _, gs := range o.sources {
		price, err := o.fetch(ctx, gs, token)
		o.cfg.Metrics.ObserveProvider(gs.src.Name(), err == nil)
		if err != nil {
			errs = append(errs, err)
			o.logger.Debug(ctx, op+": source failed", map[string]interface{}{"source": gs.src.Name(), "token": token, "error": err.Error()})
			continue
		}

		if o.cfg.Cache != nil {
			if err := o.cfg.Cache.SetPrice(ctx, token, price, o.cfg.CacheTTL); err != nil {
				o.logger.Warn(ctx, op+": price cache write failed", map[string]interface{}{"token": token, "error": err.Error()})
			}
		}
		if o.cfg.Simulator != nil {
			o.cfg.Simulator.Anchor(token, price)
		}
		return price, nil
	}

	if o.cfg.Simulator != nil {
		price, err := o.cfg.Simulator.Price(ctx, token)
		if err == nil {
			o.logger.Debug(ctx, op+": using simulated price", map[string]interface{}{"token": token, "price": price})
			return price, nil
		}
		errs = append(errs, err)
	}

	return 0, fmt.Errorf("%s %s: %w: %w", op, token, ports.ErrPriceUnavailable, errors.Join(errs...))
}

func (o *Oracle) fetch(ctx context.Context, gs guardedSource, token string) (float64, error) {
	res, err := gs.breaker.Execute(func() (interface{}, error) {
		return gs.src.Price(ctx, token)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, fmt.Errorf("%s: %w", gs.src.Name(), ports.ErrCircuitOpen)
	}
	if err != nil {
		return 0, err
	}
	price := res.(float64)
	if price <= 0 {
		return 0, fmt.Errorf("%s returned %v: %w", gs.src.Name(), price, ports.ErrInvalidResponse)
	}
	return price, nil
}

// Anchor seeds the simulator with a known price. No-op without simulation.
func (o *Oracle) Anchor(token string, price float64) {
	if o.cfg.Simulator != nil {
		o.cfg.Simulator.Anchor(token, price)
	}
}
