package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures a collaborator circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold" yaml:"failure_threshold"`
	MaxRequests      uint32        `json:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `json:"interval" yaml:"interval"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBreakerConfig opens after five consecutive failures and half-opens again after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// StateObserver is notified on every state transition. State values are
// 0 closed, 1 half-open, 2 open.
type StateObserver func(name string, state int)

// Breaker guards calls to one collaborator
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a named breaker
func NewBreaker(name string, cfg BreakerConfig, observe StateObserver) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if observe != nil {
		settings.OnStateChange = func(name string, _, to gobreaker.State) {
			observe(name, stateValue(to))
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string { return b.cb.Name() }

// State returns the current state as a string
func (b *Breaker) State() string { return b.cb.State().String() }

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// IsOpen reports whether err was produced by an open or saturated breaker
func IsOpen(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}

// Call retries fn through the breaker. A rejection by the breaker is final.
func Call(ctx context.Context, b *Breaker, cfg RetryConfig, fn func(context.Context) error) error {
	retryable := cfg.RetryableErrors
	if retryable == nil {
		retryable = DefaultRetryConfig().RetryableErrors
	}
	cfg.RetryableErrors = func(err error) bool {
		return !IsOpen(err) && retryable(err)
	}

	return RetryWithConfig(ctx, cfg, func() error {
		return b.Execute(ctx, fn)
	})
}
