// Package narrative renders the free-text summary attached to a decision.
package narrative

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
)

// ErrEmptyNarrative is returned when a generator produced no text
var ErrEmptyNarrative = errors.New("narrative: empty response")

// Generator turns the pipeline's narrative inputs into prose
type Generator interface {
	Generate(ctx context.Context, req analysis.NarrativeRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, req analysis.NarrativeRequest) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, req analysis.NarrativeRequest) (string, error) {
	return f(ctx, req)
}
