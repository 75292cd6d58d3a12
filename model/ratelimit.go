package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the request rate of a model binding.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate. Zero disables limiting.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// Burst is the number of requests allowed at once.
	Burst int `mapstructure:"burst" yaml:"burst"`
}

// RateLimitedModel waits for a token bucket slot before each generation.
type RateLimitedModel struct {
	inner   Model
	limiter *rate.Limiter
}

// NewRateLimitedModel wraps inner. A zero rate returns inner unchanged.
func NewRateLimitedModel(inner Model, cfg RateLimitConfig) Model {
	if cfg.RequestsPerMinute <= 0 {
		return inner
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedModel{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst),
	}
}

// Generate implements Model.
func (r *RateLimitedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		out := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("model %q rate limit wait: %w", r.inner.Info().Name, err)
		close(out)
		close(errCh)
		return out, errCh
	}
	return r.inner.Generate(ctx, req)
}

// Info implements Model.
func (r *RateLimitedModel) Info() Info { return r.inner.Info() }
