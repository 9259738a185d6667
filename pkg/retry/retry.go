// Package retry runs operations with exponential backoff. It is a thin layer
// over cenkalti/backoff that keeps the option style used across the service.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including first attempt).
	MaxAttempts uint

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each attempt.
	Multiplier float64

	// MaxElapsed bounds the total time spent retrying.
	MaxElapsed time.Duration

	// OnRetry is called before each retry attempt.
	OnRetry func(err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxElapsed:   time.Minute,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n uint) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the initial delay before first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithMaxElapsed bounds the total retry time.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxElapsed = d
		}
	}
}

// WithOnRetry sets a callback function called before each retry.
func WithOnRetry(fn func(err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

func (c Config) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.MaxAttempts),
		backoff.WithMaxElapsedTime(c.MaxElapsed),
	}
	if c.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(c.OnRetry)))
	}
	return opts
}

func build(opts []Option) Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Do executes the operation until it succeeds, returns a Permanent error,
// the attempts are exhausted or ctx is done.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, opts...)
	return err
}

// DoWithData is Do for operations that return data.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := build(opts)
	return backoff.Retry(ctx, func() (T, error) {
		return operation(ctx)
	}, cfg.options()...)
}

// DatabaseOptions returns the options used when connecting to the database at startup.
func DatabaseOptions() []Option {
	return []Option{
		WithMaxAttempts(6),
		WithInitialDelay(500 * time.Millisecond),
		WithMaxDelay(5 * time.Second),
		WithMaxElapsed(30 * time.Second),
	}
}
