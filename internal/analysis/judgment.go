package analysis

import "fmt"

// Stage is a lifecycle stage of a trend.
type Stage string

const (
	StageBirth  Stage = "Birth"
	StageGrowth Stage = "Growth"
	StagePeak   Stage = "Peak"
	StageDecay  Stage = "Decay"
	StageZombie Stage = "Zombie"
)

// rank orders stages from earliest to latest.
func (s Stage) rank() int {
	switch s {
	case StageBirth:
		return 0
	case StageGrowth:
		return 1
	case StagePeak:
		return 2
	case StageDecay:
		return 3
	case StageZombie:
		return 4
	default:
		return -1
	}
}

// Severity grades a reputation risk.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// CringeResult is the reputation-risk judgment.
type CringeResult struct {
	IsCringePoint bool     `json:"is_cringe_point"`
	Severity      Severity `json:"severity"`
	Explanation   string   `json:"explanation"`
}

// ROIResult is the financial judgment of exiting early.
type ROIResult struct {
	EstimatedSavings float64 `json:"estimated_savings"`
	DailyBudget      float64 `json:"daily_budget"`
	DaysAtRisk       int     `json:"days_at_risk"`
	Confidence       float64 `json:"confidence"`
	CalculationBasis string  `json:"calculation_basis"`
}

// LifecycleResult is the lifecycle-stage judgment.
type LifecycleResult struct {
	Stage           Stage  `json:"stage"`
	Description     string `json:"description"`
	StrategicAdvice string `json:"strategic_advice"`
}

// JudgmentBundle groups the three judgments computed side by side.
type JudgmentBundle struct {
	Cringe    CringeResult    `json:"cringe"`
	ROI       ROIResult       `json:"roi"`
	Lifecycle LifecycleResult `json:"lifecycle"`
}

// DetectCringePoint evaluates the reputation rules in priority order.
func DetectCringePoint(fv FeatureVector, riskScore float64) CringeResult {
	velocity := fv.Value(SignalEngagementVelocity)
	sentiment := fv.Value(SignalSentimentScore)
	fatigue := fv.Value(SignalCommentFatigue)

	switch {
	case velocity > 0.3 && sentiment < -0.4:
		return CringeResult{true, SeverityHigh,
			"Audience is actively engaged BUT sentiment is hostile. Continuing risks brand credibility."}
	case fatigue > 0.6 && riskScore > 60:
		return CringeResult{true, SeverityMedium,
			"Content saturation detected. Audience perceives this trend as 'overdone' or 'cringe'."}
	case sentiment < -0.3 && riskScore > 50:
		return CringeResult{true, SeverityLow,
			"Negative sentiment building. Early signs of audience backlash."}
	default:
		return NeutralCringe()
	}
}

// NeutralCringe is the no-risk reputation result.
func NeutralCringe() CringeResult {
	return CringeResult{false, SeverityNone, "Trend reputation is stable."}
}

// CalculateROI estimates the spend saved by exiting now. A non-positive
// budget selects the configured CPM-derived default.
func (c ModelConfig) CalculateROI(riskScore float64, window DeclineWindow, dailyBudget float64) ROIResult {
	if dailyBudget <= 0 || !isFinite(dailyBudget) {
		dailyBudget = c.DefaultDailyBudget()
	}
	riskScore = clip(riskScore, 0, 100)
	days := window.DaysAtRisk()

	confidence := 0.85
	if riskScore > 60 {
		confidence = 0.92
	}
	return ROIResult{
		EstimatedSavings: roundTo(dailyBudget*float64(days)*riskScore/100, 2),
		DailyBudget:      dailyBudget,
		DaysAtRisk:       days,
		Confidence:       confidence,
		CalculationBasis: roiBasis(c, riskScore, days),
	}
}

func roiBasis(c ModelConfig, riskScore float64, days int) string {
	switch {
	case riskScore >= c.Bands.Critical:
		return fmt.Sprintf("Critical risk detected. Continuing %d more days would waste %.0f%% of spend.", days, riskScore)
	case riskScore >= c.Bands.High:
		return fmt.Sprintf("High decline probability. %d-day exposure carries %.0f%% waste risk.", days, riskScore)
	case riskScore >= c.Bands.Medium:
		return fmt.Sprintf("Medium risk. Partial budget optimization recommended over %d days.", days)
	default:
		return "Low risk. Campaign ROI is protected."
	}
}

// NeutralROI is substituted when no financial judgment is available.
func NeutralROI() ROIResult {
	return ROIResult{
		Confidence:       0.85,
		CalculationBasis: "Financial impact unavailable.",
	}
}

var lifecycleText = map[Stage][2]string{
	StageZombie: {"Trend is visible but carries no strategic value. Engagement is artificial or low-quality.",
		"Immediate exit. This trend damages more than it benefits."},
	StageDecay: {"Trend is actively declining. Audience interest is waning.",
		"Prepare exit within 3-5 days. Salvage remaining value."},
	StagePeak: {"Trend has reached maximum saturation. Further growth unlikely.",
		"Harvest current value but avoid additional investment."},
	StageGrowth: {"Trend is accelerating with positive momentum.",
		"Scale investment strategically. High ROI window."},
	StageBirth: {"Trend is emerging. Early indicators are forming.",
		"Monitor closely. Test small campaigns before committing."},
}

// ClassifyLifecycle returns exactly one stage for any input.
func (c ModelConfig) ClassifyLifecycle(fv FeatureVector, riskScore float64) LifecycleResult {
	var stage Stage
	switch {
	case riskScore >= c.Bands.Critical:
		stage = StageZombie
	case riskScore >= c.Bands.High:
		stage = StageDecay
	case riskScore >= c.Bands.Medium:
		stage = StagePeak
	case fv.Value(SignalEngagementVelocity) > 0.3 && fv.Value(SignalSentimentScore) > 0.2:
		stage = StageGrowth
	default:
		stage = StageBirth
	}
	return lifecycleResult(stage)
}

func lifecycleResult(stage Stage) LifecycleResult {
	text := lifecycleText[stage]
	return LifecycleResult{Stage: stage, Description: text[0], StrategicAdvice: text[1]}
}

// NeutralLifecycle is substituted when no lifecycle judgment is available.
func NeutralLifecycle() LifecycleResult {
	return lifecycleResult(StageBirth)
}

// Judge runs the three judgments over the same inputs.
func (c ModelConfig) Judge(fv FeatureVector, assessment RiskAssessment, dailyBudget float64) JudgmentBundle {
	fv = fv.normalized()
	return JudgmentBundle{
		Cringe:    DetectCringePoint(fv, assessment.RiskScore),
		ROI:       c.CalculateROI(assessment.RiskScore, assessment.DeclineWindow, dailyBudget),
		Lifecycle: c.ClassifyLifecycle(fv, assessment.RiskScore),
	}
}
