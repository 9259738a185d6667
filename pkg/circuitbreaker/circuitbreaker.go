// Package circuitbreaker stops calling a failing dependency for a while so
// callers can fall back at once instead of waiting on timeouts. The service
// puts it in front of Redis, whose data is always recomputable.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of the breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down passed.
	StateOpen
	// StateHalfOpen lets a few trial calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling through while the breaker is open or
// its half-open trial calls are taken.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before letting trial calls through.
	Cooldown time.Duration

	// MaxTrialCalls bounds concurrent calls while half-open.
	MaxTrialCalls int

	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. By default every error except
	// context cancellation does.
	IsFailure func(error) bool

	Now func() time.Time
}

// Option configures a Breaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the success threshold.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithCooldown sets the open-state duration.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	trials      int
	lastFailure time.Time
}

// New creates a closed breaker.
func New(name string, opts ...Option) *Breaker {
	c := Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxTrialCalls:    1,
		Now:              time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{config: c}
}

// Execute calls fn unless the breaker is open and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.config.Now().Sub(b.lastFailure) < b.config.Cooldown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.trials = 1
		return nil
	case StateHalfOpen:
		if b.trials >= b.config.MaxTrialCalls {
			return ErrOpen
		}
		b.trials++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.config.IsFailure(err) {
		b.failures++
		b.successes = 0
		b.lastFailure = b.config.Now()
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.trials--
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	from := b.state
	b.state = s
	b.failures, b.successes, b.trials = 0, 0, 0
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, s)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.config.Name
}

// CacheBreaker is tuned for a cache: it trips fast and retries again soon,
// since every miss has a cheap fallback.
func CacheBreaker(onStateChange func(name string, from, to State)) *Breaker {
	return New("redis",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCooldown(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}
