package analysis

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trainedModel = sync.OnceValue(func() *LogisticModel {
	return TrainLogisticModel(DefaultTrainingConfig())
})

// constantScorer always predicts the same probability.
type constantScorer float64

func (c constantScorer) PredictProbability(FeatureVector) float64 { return float64(c) }

func fatiguedTrend() FeatureVector {
	fv, _ := NewFeatureVector(map[string]float64{
		SignalEngagementVelocity: -0.5,
		SignalSentimentScore:     -0.6,
		SignalCommentFatigue:     0.8,
		SignalInfluencerRatio:    0.2,
		SignalPostingChange:      -0.3,
	})
	return fv
}

func neutralTrend() FeatureVector {
	fv, _ := NewFeatureVector(map[string]float64{
		SignalEngagementVelocity: 0,
		SignalSentimentScore:     0,
		SignalCommentFatigue:     0,
		SignalInfluencerRatio:    0.5,
		SignalPostingChange:      0,
	})
	return fv
}

func TestBand(t *testing.T) {
	tests := []struct {
		score  float64
		level  RiskLevel
		window DeclineWindow
		hint   Stage
	}{
		{0, RiskLow, WindowStable, StageGrowth},
		{39.99, RiskLow, WindowStable, StageGrowth},
		{40, RiskMedium, WindowWeeks, StagePeak},
		{40.01, RiskMedium, WindowWeeks, StagePeak},
		{69.99, RiskMedium, WindowWeeks, StagePeak},
		{70, RiskHigh, WindowDays, StageDecay},
		{70.01, RiskHigh, WindowDays, StageDecay},
		{84.99, RiskHigh, WindowDays, StageDecay},
		{85, RiskCritical, WindowImminent, StageZombie},
		{85.01, RiskCritical, WindowImminent, StageZombie},
		{100, RiskCritical, WindowImminent, StageZombie},
	}

	cfg := DefaultModelConfig()
	for _, tt := range tests {
		level, window, hint := cfg.Band(tt.score)
		assert.Equal(t, tt.level, level, "score %.2f", tt.score)
		assert.Equal(t, tt.window, window, "score %.2f", tt.score)
		assert.Equal(t, tt.hint, hint, "score %.2f", tt.score)
	}
}

func TestDeclineWindowDaysAtRisk(t *testing.T) {
	assert.Equal(t, 1, WindowImminent.DaysAtRisk())
	assert.Equal(t, 4, WindowDays.DaysAtRisk())
	assert.Equal(t, 10, WindowWeeks.DaysAtRisk())
	assert.Equal(t, 30, WindowStable.DaysAtRisk())
}

func TestBusinessScore(t *testing.T) {
	cfg := DefaultModelConfig()

	tests := []struct {
		name     string
		fv       FeatureVector
		expected float64
		damped   bool
	}{
		{"fatigued", fatiguedTrend(), 95.5833, false},
		{"neutral", neutralTrend(), 46.8333, false},
		{
			name: "clamps at 100",
			fv: complete(map[string]float64{
				SignalFatigueKeywordRatio:   1,
				SignalFormatRepetition:      1,
				SignalEngagementDecayRate:   1,
				SignalTrendAge:              90,
				SignalCommentSentimentScore: -1,
			}),
			expected: 100,
		},
		{
			name:     "evergreen views override the linear model",
			fv:       complete(map[string]float64{SignalCommentFatigue: 1, SignalViewCount: 60_000_000}),
			expected: 15,
			damped:   true,
		},
		{
			name:     "evergreen likes override the linear model",
			fv:       complete(map[string]float64{SignalLikeCount: 1_500_000}),
			expected: 15,
			damped:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, damped := cfg.BusinessScore(tt.fv)
			assert.InDelta(t, tt.expected, score, 1e-3)
			assert.Equal(t, tt.damped, damped)
		})
	}
}

func TestRiskEnsembleWithoutModelUsesBusinessScore(t *testing.T) {
	e := NewRiskEnsemble(DefaultModelConfig(), NoModel())

	got := e.Score(fatiguedTrend())
	assert.False(t, got.ModelAvailable)
	assert.Equal(t, 95.58, got.RiskScore)
	assert.Equal(t, RiskCritical, got.RiskLevel)
	assert.Equal(t, got.BusinessScore, got.StatisticalScore)

	got = e.Score(neutralTrend())
	assert.Equal(t, 46.83, got.RiskScore)
	assert.Equal(t, RiskMedium, got.RiskLevel)
}

func TestRiskEnsembleBlendIsLinear(t *testing.T) {
	cfg := DefaultModelConfig()
	for _, p := range []float64{0, 0.1, 0.37, 0.5, 0.93, 1} {
		e := NewRiskEnsemble(cfg, SomeModel(constantScorer(p)))
		for _, fv := range []FeatureVector{fatiguedTrend(), neutralTrend()} {
			got := e.Score(fv)
			b, _ := cfg.BusinessScore(fv)
			assert.True(t, got.ModelAvailable)
			assert.InDelta(t, 0.4*p*100+0.6*b, got.RiskScore, 0.005)
		}
	}
}

func TestRiskEnsembleDampsBeforeBlending(t *testing.T) {
	fv := complete(map[string]float64{SignalCommentFatigue: 1, SignalViewCount: 80_000_000})
	got := NewRiskEnsemble(DefaultModelConfig(), SomeModel(constantScorer(1))).Score(fv)

	assert.True(t, got.EvergreenDamped)
	assert.Equal(t, 15.0, got.BusinessScore)
	assert.Equal(t, 49.0, got.RiskScore)
}

func TestRiskEnsembleIgnoresNonFiniteModelOutput(t *testing.T) {
	got := NewRiskEnsemble(DefaultModelConfig(), SomeModel(constantScorer(math.NaN()))).Score(neutralTrend())

	assert.False(t, got.ModelAvailable)
	assert.Equal(t, 46.83, got.RiskScore)
}

func TestTrainedModelSeparatesTrends(t *testing.T) {
	e := NewRiskEnsemble(DefaultModelConfig(), SomeModel(trainedModel()))

	a := e.Score(fatiguedTrend())
	require.True(t, a.ModelAvailable)
	assert.Contains(t, []RiskLevel{RiskCritical, RiskHigh}, a.RiskLevel)

	b := e.Score(neutralTrend())
	assert.Contains(t, []RiskLevel{RiskLow, RiskMedium}, b.RiskLevel)
	assert.Greater(t, a.StatisticalScore, b.StatisticalScore)
}
