package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearScorer is additive in probability space, so its Shapley values are
// its weights times the distance from the background.
type linearScorer struct {
	base    float64
	weights map[string]float64
}

func (l linearScorer) PredictProbability(fv FeatureVector) float64 {
	p := l.base
	for k, w := range l.weights {
		p += w * fv.Value(k)
	}
	return p
}

func TestExplainShapleyRecoversAdditiveContributions(t *testing.T) {
	scorer := linearScorer{base: 0.3, weights: map[string]float64{
		SignalCommentFatigue: 0.5,
		SignalSentimentScore: -0.25,
		SignalPostingChange:  0.01,
	}}
	x := NewExplainer(DefaultModelConfig())

	got := x.Explain(fatiguedTrend(), 90, SomeModel(scorer))

	require.Equal(t, MethodShapley, got.Method)
	require.Len(t, got.Drivers, 2)
	assert.Equal(t, AttributionRecord{
		Feature:      SignalCommentFatigue,
		Label:        "Content saturation detected (Audience Fatigue)",
		Contribution: 0.4,
		Direction:    DirectionNegative,
	}, got.Drivers[0])
	assert.Equal(t, SignalSentimentScore, got.Drivers[1].Feature)
	assert.InDelta(t, 0.15, got.Drivers[1].Contribution, 1e-9)
	assert.Equal(t, "Content saturation detected (Audience Fatigue)", got.PrimaryDriver)
	assert.Equal(t, []string{
		"Content saturation detected (Audience Fatigue)",
		"Audience sentiment has turned negative",
	}, got.TopSignals)
	assert.Equal(t,
		"Analysis complete. Mathematical analysis identifies Content saturation detected (Audience Fatigue) as the primary risk factor (SHAP contribution: 0.40). Additional factors include: Audience sentiment has turned negative.",
		got.Summary)
}

func TestExplainShapleyFavourableSignals(t *testing.T) {
	scorer := linearScorer{base: 0.5, weights: map[string]float64{SignalSentimentScore: -0.25}}
	fv := complete(map[string]float64{SignalSentimentScore: 0.4})

	got := NewExplainer(DefaultModelConfig()).Explain(fv, 20, SomeModel(scorer))

	require.Len(t, got.Drivers, 1)
	assert.Equal(t, DirectionPositive, got.Drivers[0].Direction)
	assert.InDelta(t, -0.1, got.Drivers[0].Contribution, 1e-9)
	assert.Equal(t, "Audience sentiment remains supportive", got.Drivers[0].Label)
	assert.True(t, strings.HasPrefix(got.Summary, "Analysis complete. Trend appears stable"))
	assert.Contains(t, got.Summary, got.PrimaryDriver)
}

func TestExplainShapleyEfficiency(t *testing.T) {
	m := trainedModel()
	fv := fatiguedTrend()
	cfg := DefaultModelConfig()
	cfg.SignificanceThreshold = 0
	x := NewExplainer(cfg)

	got := x.Explain(fv, 90, SomeModel(m))

	background := fv.Clone()
	for _, name := range attributedSignals {
		background[name] = NeutralFeatureVector()[name]
	}
	sum := 0.0
	for _, d := range got.Drivers {
		sum += d.Contribution
	}
	assert.InDelta(t, m.PredictProbability(fv)-m.PredictProbability(background), sum, 1e-3)
}

func TestExplainRankingAndThreshold(t *testing.T) {
	got := NewExplainer(DefaultModelConfig()).Explain(fatiguedTrend(), 95, SomeModel(trainedModel()))

	require.Equal(t, MethodShapley, got.Method)
	require.NotEmpty(t, got.Drivers)
	for i, d := range got.Drivers {
		assert.GreaterOrEqual(t, math.Abs(d.Contribution), 0.01)
		if i > 0 {
			assert.GreaterOrEqual(t, math.Abs(got.Drivers[i-1].Contribution), math.Abs(d.Contribution))
		}
	}
	assert.LessOrEqual(t, len(got.TopSignals), 3)
	first := strings.ToLower(got.Drivers[0].Label)
	assert.True(t, strings.Contains(first, "fatigue") || strings.Contains(first, "sentiment"), first)
}

func TestExplainRuleBased(t *testing.T) {
	tests := []struct {
		name      string
		fv        FeatureVector
		risk      float64
		model     ModelHandle
		reasons   []string
		primary   string
		summaryIn string
	}{
		{
			name:  "rules fire in declaration order",
			fv:    fatiguedTrend(),
			risk:  95,
			model: NoModel(),
			reasons: []string{
				"Audience sentiment has turned negative",
				"Engagement momentum is rapidly slowing",
				"Content saturation detected (Audience Fatigue)",
				"Key creators are disengaging from this trend",
			},
			primary:   "Audience sentiment has turned negative",
			summaryIn: "Primary risk factor: Audience sentiment has turned negative. Additional factors include: Engagement momentum is rapidly slowing, Content saturation detected (Audience Fatigue).",
		},
		{
			name:      "combined degradation when nothing fires above 50",
			fv:        neutralTrend(),
			risk:      60,
			model:     NoModel(),
			reasons:   []string{combinedDegradation},
			primary:   combinedDegradation,
			summaryIn: combinedDegradation,
		},
		{
			name:      "stable sentinel when nothing fires at low risk",
			fv:        neutralTrend(),
			risk:      30,
			model:     NoModel(),
			reasons:   []string{},
			primary:   StableDriver,
			summaryIn: "the leading signal is Stable Trend Dynamics.",
		},
		{
			name:      "model without significant drivers falls back",
			fv:        neutralTrend(),
			risk:      30,
			model:     SomeModel(constantScorer(0.2)),
			reasons:   []string{},
			primary:   StableDriver,
			summaryIn: "Trend appears stable",
		},
	}

	x := NewExplainer(DefaultModelConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Explain(tt.fv, tt.risk, tt.model)
			assert.Equal(t, MethodRuleBased, got.Method)
			assert.Empty(t, got.Drivers)
			assert.Equal(t, tt.reasons, got.Reasons)
			assert.Equal(t, tt.primary, got.PrimaryDriver)
			assert.LessOrEqual(t, len(got.TopSignals), 3)
			assert.Contains(t, got.Summary, tt.summaryIn)
		})
	}
}

func TestBusinessLabel(t *testing.T) {
	assert.Equal(t, "Posting frequency has dropped significantly", BusinessLabel(SignalPostingChange, 0.2))
	assert.Equal(t, "Posting frequency is steady", BusinessLabel(SignalPostingChange, -0.2))
	assert.Equal(t, SignalTrendAge, BusinessLabel(SignalTrendAge, 1))
}
