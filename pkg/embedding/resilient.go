package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/gomem/gomem/pkg/observability"
)

// ResilienceConfig tunes the breaker and retry policy around an embedding
// endpoint.
type ResilienceConfig struct {
	MaxRetries      uint          `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

func (c ResilienceConfig) withDefaults() ResilienceConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// resilientClient wraps a Client with a circuit breaker and bounded
// exponential-backoff retries. A tripped breaker fails fast without hitting
// the endpoint.
type resilientClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
	cfg     ResilienceConfig
}

// WithResilience wraps client with the breaker and retry policy. name keys
// the breaker, typically the embedder id.
func WithResilience(client Client, name string, cfg ResilienceConfig, logger observability.Logger) Client {
	cfg = cfg.withDefaults()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return &resilientClient{inner: client, breaker: breaker, cfg: cfg}
}

func (c *resilientClient) Dimensions() int { return c.inner.Dimensions() }

func (c *resilientClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.retryBackoff(), uint64(c.cfg.MaxRetries)),
		ctx,
	)

	var vectors [][]float32
	operation := func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.inner.Embed(ctx, inputs)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		vectors = result.([][]float32)
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *resilientClient) retryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval
	return b
}
