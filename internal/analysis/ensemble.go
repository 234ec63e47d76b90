package analysis

// RiskLevel is the categorical band of a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// DeclineWindow is the expected time until engagement collapses.
type DeclineWindow string

const (
	WindowImminent DeclineWindow = "<24h"
	WindowDays     DeclineWindow = "3-5 Days"
	WindowWeeks    DeclineWindow = "1-2 Weeks"
	WindowStable   DeclineWindow = "Stable (>30 Days)"
)

// DaysAtRisk converts a window label into the exposure used by the ROI calculator.
func (w DeclineWindow) DaysAtRisk() int {
	switch w {
	case WindowImminent:
		return 1
	case WindowDays:
		return 4
	case WindowWeeks:
		return 10
	default:
		return 30
	}
}

// RiskAssessment is the output of the Risk Ensemble.
type RiskAssessment struct {
	RiskScore        float64       `json:"risk_score"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	DeclineWindow    DeclineWindow `json:"decline_window"`
	LifecycleHint    Stage         `json:"lifecycle_hint"`
	StatisticalScore float64       `json:"statistical_score"`
	BusinessScore    float64       `json:"business_score"`
	EvergreenDamped  bool          `json:"evergreen_damped"`
	ModelAvailable   bool          `json:"model_available"`
}

// Band maps a score onto level, window and lifecycle hint. Thresholds are
// evaluated high to low; the first match wins.
func (c ModelConfig) Band(score float64) (RiskLevel, DeclineWindow, Stage) {
	switch {
	case score >= c.Bands.Critical:
		return RiskCritical, WindowImminent, StageZombie
	case score >= c.Bands.High:
		return RiskHigh, WindowDays, StageDecay
	case score >= c.Bands.Medium:
		return RiskMedium, WindowWeeks, StagePeak
	default:
		return RiskLow, WindowStable, StageGrowth
	}
}

// BusinessScore is the weighted rule score and whether evergreen damping replaced it.
func (c ModelConfig) BusinessScore(fv FeatureVector) (float64, bool) {
	if fv.Value(SignalViewCount) > c.EvergreenViewThreshold || fv.Value(SignalLikeCount) > c.EvergreenLikeThreshold {
		return c.EvergreenScore, true
	}

	w := c.Weights
	score := c.BaseScore +
		w.FatigueKeywordRatio*fv.Value(SignalFatigueKeywordRatio) +
		w.EngagementDecayRate*fv.Value(SignalEngagementDecayRate) +
		w.FormatRepetition*fv.Value(SignalFormatRepetition) +
		w.TrendAge*min(fv.Value(SignalTrendAge)/c.TrendAgeHorizonDays, 1) +
		w.EngagementPerView*fv.Value(SignalEngagementPerView) +
		w.CommentSentimentScore*(fv.Value(SignalCommentSentimentScore)+1)/2
	return clip(score, 0, 100), false
}

// RiskEnsemble blends the statistical and business scores.
type RiskEnsemble struct {
	cfg   ModelConfig
	model ModelHandle
}

// NewRiskEnsemble creates an ensemble over an optional statistical model.
func NewRiskEnsemble(cfg ModelConfig, model ModelHandle) *RiskEnsemble {
	return &RiskEnsemble{cfg: cfg, model: model}
}

// Score never fails. Without a statistical model the business score carries
// the full weight.
func (e *RiskEnsemble) Score(fv FeatureVector) RiskAssessment {
	fv = fv.normalized()

	business, damped := e.cfg.BusinessScore(fv)
	statistical := business
	scorer, ok := e.model.Get()
	if ok {
		p := scorer.PredictProbability(fv)
		if isFinite(p) {
			statistical = clip(p, 0, 1) * 100
		} else {
			ok = false
		}
	}

	final := business
	if ok {
		final = blend(statistical, business, e.cfg.StatisticalWeight)
	}
	final = clip(roundTo(final, 2), 0, 100)

	level, window, hint := e.cfg.Band(final)
	return RiskAssessment{
		RiskScore:        final,
		RiskLevel:        level,
		DeclineWindow:    window,
		LifecycleHint:    hint,
		StatisticalScore: roundTo(statistical, 2),
		BusinessScore:    roundTo(business, 2),
		EvergreenDamped:  damped,
		ModelAvailable:   ok,
	}
}
