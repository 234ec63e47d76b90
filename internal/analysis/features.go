package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Canonical signal names.
const (
	SignalEngagementVelocity    = "engagement_velocity"
	SignalSentimentScore        = "sentiment_score"
	SignalCommentFatigue        = "comment_fatigue"
	SignalInfluencerRatio       = "influencer_ratio"
	SignalPostingChange         = "posting_change"
	SignalTrendAge              = "trend_age"
	SignalFatigueKeywordRatio   = "fatigue_keyword_ratio"
	SignalFormatRepetition      = "format_repetition_score"
	SignalEngagementPerView     = "engagement_per_view"
	SignalCommentSentimentScore = "comment_sentiment_score"
	SignalInteractionQuality    = "interaction_quality"
	SignalEngagementDecayRate   = "engagement_decay_rate"
	SignalTimeSincePeak         = "time_since_peak"
	SignalViewCount             = "view_count"
	SignalLikeCount             = "like_count"
)

// DefaultTrendAgeDays is used when a publish timestamp cannot be parsed.
const DefaultTrendAgeDays = 10.0

var (
	// ErrUnknownSignal is returned when a vector carries a key outside the canonical set.
	ErrUnknownSignal = errors.New("unknown signal")
	// ErrMissingSignal is returned by Validate when a canonical key is absent.
	ErrMissingSignal = errors.New("missing signal")
)

// FeatureVector maps canonical signal names to values. Vectors built with
// NewFeatureVector or FeatureEngineer.Compute always carry every canonical key.
type FeatureVector map[string]float64

type signalDef struct {
	name     string
	min, max float64
	// neutral yields the value used when the signal is absent. It may read
	// signals declared earlier in the table.
	neutral func(fv FeatureVector) float64
}

func constant(v float64) func(FeatureVector) float64 {
	return func(FeatureVector) float64 { return v }
}

// signalTable is ordered so that derived defaults only depend on earlier rows.
var signalTable = []signalDef{
	{SignalEngagementVelocity, -1, 1, constant(0)},
	{SignalSentimentScore, -1, 1, constant(0)},
	{SignalCommentFatigue, 0, 1, constant(0)},
	{SignalInfluencerRatio, 0, 1, constant(0.5)},
	{SignalPostingChange, -1, 1, constant(0)},
	{SignalTrendAge, 0, 3650, constant(DefaultTrendAgeDays)},
	{SignalFatigueKeywordRatio, 0, 1, func(fv FeatureVector) float64 { return fv[SignalCommentFatigue] }},
	{SignalFormatRepetition, 0, 1, func(fv FeatureVector) float64 { return fv[SignalCommentFatigue] }},
	{SignalEngagementPerView, 0, 1, func(fv FeatureVector) float64 {
		return (fv[SignalEngagementVelocity]*velocityScale + healthyInteractionRate) / 100
	}},
	{SignalCommentSentimentScore, -1, 1, func(fv FeatureVector) float64 { return fv[SignalSentimentScore] }},
	{SignalInteractionQuality, -1, 1, func(fv FeatureVector) float64 {
		return interactionQuality(fv[SignalSentimentScore], fv[SignalEngagementPerView])
	}},
	{SignalEngagementDecayRate, 0, 1, func(fv FeatureVector) float64 { return decayRateForAge(fv[SignalTrendAge]) }},
	{SignalTimeSincePeak, 0, 24, func(fv FeatureVector) float64 { return timeSincePeak(fv[SignalTrendAge]) }},
	{SignalViewCount, 0, 1e13, constant(0)},
	{SignalLikeCount, 0, 1e13, constant(0)},
}

var signalIndex = func() map[string]signalDef {
	m := make(map[string]signalDef, len(signalTable))
	for _, s := range signalTable {
		m[s.name] = s
	}
	return m
}()

// SignalNames returns the canonical signal names in declaration order.
func SignalNames() []string {
	names := make([]string, len(signalTable))
	for i, s := range signalTable {
		names[i] = s.name
	}
	return names
}

// NewFeatureVector builds a complete, clamped vector from a partial map.
// Absent, NaN and infinite values are replaced by the documented neutral
// default; keys outside the canonical set are rejected.
func NewFeatureVector(partial map[string]float64) (FeatureVector, error) {
	var unknown []string
	for k := range partial {
		if _, ok := signalIndex[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, strings.Join(unknown, ", "))
	}
	return complete(partial), nil
}

// NeutralFeatureVector returns the all-defaults vector used as the attribution background.
func NeutralFeatureVector() FeatureVector {
	return complete(nil)
}

func complete(partial map[string]float64) FeatureVector {
	fv := make(FeatureVector, len(signalTable))
	for _, s := range signalTable {
		v, ok := partial[s.name]
		if !ok || !isFinite(v) {
			v = s.neutral(fv)
		}
		fv[s.name] = clip(v, s.min, s.max)
	}
	return fv
}

// Validate reports whether fv carries exactly the canonical key set.
func (fv FeatureVector) Validate() error {
	for k := range fv {
		if _, ok := signalIndex[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSignal, k)
		}
	}
	for _, s := range signalTable {
		if _, ok := fv[s.name]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignal, s.name)
		}
	}
	return nil
}

// Value returns the named signal clamped to its documented range.
func (fv FeatureVector) Value(name string) float64 {
	s, ok := signalIndex[name]
	if !ok {
		return 0
	}
	v, present := fv[name]
	if !present || !isFinite(v) {
		return complete(fv)[name]
	}
	return clip(v, s.min, s.max)
}

// Clone returns an independent copy.
func (fv FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(fv))
	for k, v := range fv {
		out[k] = v
	}
	return out
}

// normalized drops unknown keys and fills and clamps the rest.
func (fv FeatureVector) normalized() FeatureVector {
	return complete(fv)
}
