package narrative

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
)

// Source names which generator produced a narrative
type Source string

const (
	SourceModel    Source = "model"
	SourceTemplate Source = "template"
	SourceNone     Source = "none"
)

// Guarded calls a remote generator through a breaker with retries and a
// deadline, and falls back to a local generator when that fails.
type Guarded struct {
	primary  Generator
	fallback Generator
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	timeout  time.Duration
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
}

// GuardedOptions configures a Guarded generator
type GuardedOptions struct {
	Breaker resilience.BreakerConfig
	Retry   resilience.RetryConfig
	Timeout time.Duration
	Metrics *monitoring.Metrics
	Logger  *monitoring.Logger
}

// NewGuarded wraps primary. Either generator may be nil.
func NewGuarded(primary, fallback Generator, opts GuardedOptions) *Guarded {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	var observe resilience.StateObserver
	if opts.Metrics != nil {
		observe = opts.Metrics.SetBreakerState
	}

	return &Guarded{
		primary:  primary,
		fallback: fallback,
		breaker:  resilience.NewBreaker("narrative", opts.Breaker, observe),
		retry:    opts.Retry,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Breaker exposes the collaborator breaker for health reporting
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }

// Generate implements Generator
func (g *Guarded) Generate(ctx context.Context, req analysis.NarrativeRequest) (string, error) {
	text, _, err := g.GenerateWithSource(ctx, req)
	return text, err
}

// GenerateWithSource also reports which generator answered. When both fail
// the error of the last attempt is returned with SourceNone.
func (g *Guarded) GenerateWithSource(ctx context.Context, req analysis.NarrativeRequest) (string, Source, error) {
	var primaryErr error
	if g.primary != nil {
		text, err := g.callPrimary(ctx, req)
		if err == nil {
			return text, SourceModel, nil
		}
		primaryErr = err
		g.recordFallback(string(SourceTemplate), err.Error())
	}

	if g.fallback == nil {
		if primaryErr == nil {
			primaryErr = ErrEmptyNarrative
		}
		return "", SourceNone, primaryErr
	}

	text, err := g.fallback.Generate(ctx, req)
	if err != nil {
		g.recordFallback(string(SourceNone), err.Error())
		return "", SourceNone, err
	}
	return text, SourceTemplate, nil
}

func (g *Guarded) callPrimary(ctx context.Context, req analysis.NarrativeRequest) (string, error) {
	start := time.Now()

	var text string
	err := resilience.Call(ctx, g.breaker, g.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		out, err := g.primary.Generate(callCtx, req)
		if err != nil {
			return err
		}
		text = out
		return nil
	})

	duration := time.Since(start)
	if g.metrics != nil {
		g.metrics.RecordCollaboratorCall("narrative", err == nil, duration)
	}
	if g.logger != nil {
		g.logger.ExternalAPILogger("narrative", "generate", duration, err)
	}
	return text, err
}

func (g *Guarded) recordFallback(fallback, reason string) {
	if g.metrics != nil {
		g.metrics.RecordFallback("narrative", fallback)
	}
	if g.logger != nil {
		g.logger.FallbackLogger("narrative", fallback, reason)
	}
}
