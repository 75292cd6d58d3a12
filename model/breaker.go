package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/beehive/logging"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `mapstructure:"max_failures" yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// BreakerModel wraps a Model with circuit breaker protection. When the
// wrapped model fails repeatedly the circuit opens and subsequent turns fail
// fast. The reasoning loop counts those failures against its step retries.
type BreakerModel struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerModel wraps inner with a circuit breaker. Zero config values
// fall back to defaults.
func NewBreakerModel(inner Model, cfg BreakerConfig, logger logging.Logger) *BreakerModel {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "llm:" + inner.Info().Name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model.breaker.state_change", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Caller aborts are not provider failures.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &BreakerModel{inner: inner, breaker: cb}
}

// Generate implements Model. The whole generation, including draining the
// stream, runs inside the breaker so streaming errors count as failures.
func (b *BreakerModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		_, err := b.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, forward(ctx, b.inner, req, out)
		})
		if err == nil {
			return
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			errCh <- fmt.Errorf("model %q circuit open: %w", b.inner.Info().Name, err)
			return
		}
		errCh <- err
	}()

	return out, errCh
}

// Info implements Model.
func (b *BreakerModel) Info() Info { return b.inner.Info() }

// State returns the current circuit breaker state for monitoring.
func (b *BreakerModel) State() gobreaker.State { return b.breaker.State() }

// forward relays every response of inner to out and returns the terminal error.
func forward(ctx context.Context, inner Model, req Request, out chan<- Response) error {
	respCh, innerErr := inner.Generate(ctx, req)
	for respCh != nil || innerErr != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-innerErr:
			if !ok {
				innerErr = nil
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

var _ Model = (*BreakerModel)(nil)
