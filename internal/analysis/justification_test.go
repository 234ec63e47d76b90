package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssembleRecommendation(t *testing.T) {
	cfg := DefaultModelConfig()
	a := NewAssembler(cfg, func() time.Time { return fixedNow })

	cringe := CringeResult{IsCringePoint: true, Severity: SeverityMedium, Explanation: "x"}
	tests := []struct {
		name     string
		risk     float64
		cringe   *CringeResult
		expected Recommendation
		cites    []string
	}{
		{"critical risk", 85, nil, RecommendStop, []string{"85.00% decline risk", "no active reputation risk", "₹"}},
		{"cringe point at low risk", 30, &cringe, RecommendStop, []string{"30.00% decline risk", "MEDIUM reputation risk"}},
		{"high risk", 84.99, nil, RecommendExit, []string{"84.99%", "Decay phase", "₹"}},
		{"medium risk", 40, nil, RecommendPivot, []string{"40.00% decline risk", "Peak stage"}},
		{"low risk", 39.99, nil, RecommendScale, []string{"60.01% stability", "39.99% decline risk", "Birth phase"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := NeutralFeatureVector()
			level := cfg.ClassifyLifecycle(fv, tt.risk)
			_, window, _ := cfg.Band(tt.risk)
			roi := cfg.CalculateROI(tt.risk, window, 0)

			got := a.Assemble(AssemblyInput{
				RiskScore: tt.risk,
				Cringe:    tt.cringe,
				ROI:       &roi,
				Lifecycle: &level,
			})
			assert.Equal(t, tt.expected, got.Recommendation)
			for _, c := range tt.cites {
				assert.Contains(t, got.JustificationText, c)
			}
			assert.Equal(t, roi.Confidence, got.ConfidenceScore)
			assert.Equal(t, fixedNow, got.Timestamp)
		})
	}
}

func TestAssembleSubstitutesNeutralDefaults(t *testing.T) {
	got := NewAssembler(DefaultModelConfig(), func() time.Time { return fixedNow }).Assemble(AssemblyInput{RiskScore: 10})

	assert.Equal(t, RecommendScale, got.Recommendation)
	assert.Equal(t, MethodRuleBased, got.Evidence.ExplanationMethod)
	assert.Equal(t, SeverityNone, got.Evidence.ReputationRisk.Severity)
	assert.False(t, got.Evidence.ReputationRisk.IsCritical)
	assert.Equal(t, StageBirth, got.Evidence.LifecycleContext.Stage)
	assert.Equal(t, 0.85, got.ConfidenceScore)
	assert.NotNil(t, got.Evidence.Attribution)
	assert.NotNil(t, got.Evidence.TechnicalSignals)
	assert.Contains(t, got.Evidence.BusinessInterpretation, StableDriver)
}

func TestAssembleNarrativeOverridesSummary(t *testing.T) {
	a := NewAssembler(DefaultModelConfig(), nil)
	exp := Explanation{Method: MethodRuleBased, PrimaryDriver: StableDriver, Summary: "summary"}

	got := a.Assemble(AssemblyInput{RiskScore: 10, Attribution: &exp})
	assert.Equal(t, "summary", got.Evidence.BusinessInterpretation)

	got = a.Assemble(AssemblyInput{RiskScore: 10, Attribution: &exp, Narrative: "generated"})
	assert.Equal(t, "generated", got.Evidence.BusinessInterpretation)
}

func TestAssembleFormatsSavingsWithGrouping(t *testing.T) {
	cfg := DefaultModelConfig()
	roi := cfg.CalculateROI(90, WindowImminent, 0)

	got := NewAssembler(cfg, nil).Assemble(AssemblyInput{RiskScore: 90, ROI: &roi})
	assert.Contains(t, got.JustificationText, "₹22,500.00 potential savings")
}
