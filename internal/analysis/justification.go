package analysis

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Recommendation is the single top-level action of a decision.
type Recommendation string

const (
	RecommendStop  Recommendation = "STOP CAMPAIGN IMMEDIATELY"
	RecommendExit  Recommendation = "PREPARE EXIT STRATEGY"
	RecommendPivot Recommendation = "PIVOT CONTENT STRATEGY"
	RecommendScale Recommendation = "SCALE STRATEGICALLY"
)

// ReputationEvidence is the cringe judgment as cited in a decision.
type ReputationEvidence struct {
	IsCritical  bool     `json:"is_critical"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}

// FinancialEvidence is the ROI judgment as cited in a decision.
type FinancialEvidence struct {
	EstimatedSavings float64 `json:"estimated_savings"`
	Confidence       float64 `json:"confidence"`
	Basis            string  `json:"basis"`
}

// LifecycleEvidence is the lifecycle judgment as cited in a decision.
type LifecycleEvidence struct {
	Stage           Stage  `json:"stage"`
	StrategicAdvice string `json:"strategic_advice"`
}

// Evidence is a nested copy of everything a decision rests on.
type Evidence struct {
	TechnicalSignals       []string            `json:"technical_signals"`
	Attribution            []AttributionRecord `json:"attribution"`
	ExplanationMethod      ExplanationMethod   `json:"explanation_method"`
	BusinessInterpretation string              `json:"business_interpretation"`
	ReputationRisk         ReputationEvidence  `json:"reputation_risk"`
	FinancialImpact        FinancialEvidence   `json:"financial_impact"`
	LifecycleContext       LifecycleEvidence   `json:"lifecycle_context"`
}

// DecisionJustification is the terminal decision record. It holds only
// values and is safe to serialize as is.
type DecisionJustification struct {
	Recommendation    Recommendation `json:"recommendation"`
	JustificationText string         `json:"justification_text"`
	RiskScore         float64        `json:"risk_score"`
	Evidence          Evidence       `json:"evidence"`
	ConfidenceScore   float64        `json:"confidence_score"`
	Timestamp         time.Time      `json:"timestamp"`
}

// AssemblyInput carries the upstream outputs. Nil judgments are replaced by
// their neutral defaults.
type AssemblyInput struct {
	RiskScore   float64
	Attribution *Explanation
	Cringe      *CringeResult
	ROI         *ROIResult
	Lifecycle   *LifecycleResult
	// Narrative overrides the attribution summary when non-empty.
	Narrative string
}

// Assembler builds DecisionJustification records.
type Assembler struct {
	cfg ModelConfig
	now func() time.Time
}

// NewAssembler creates an assembler reading the current time from now.
func NewAssembler(cfg ModelConfig, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{cfg: cfg, now: now}
}

// Assemble never returns a partially filled record.
func (a *Assembler) Assemble(in AssemblyInput) DecisionJustification {
	risk := clip(in.RiskScore, 0, 100)
	if !isFinite(in.RiskScore) {
		risk = 0
	}

	attribution := Explanation{Method: MethodRuleBased, PrimaryDriver: StableDriver}
	if in.Attribution != nil {
		attribution = *in.Attribution
	}
	cringe := NeutralCringe()
	if in.Cringe != nil {
		cringe = *in.Cringe
	}
	roi := NeutralROI()
	if in.ROI != nil {
		roi = *in.ROI
	}
	lifecycle := NeutralLifecycle()
	if in.Lifecycle != nil {
		lifecycle = *in.Lifecycle
	}

	interpretation := in.Narrative
	if interpretation == "" {
		interpretation = attribution.Summary
	}
	if interpretation == "" {
		interpretation = summarize(risk, []string{attribution.PrimaryDriver}, "")
	}

	rec, text := a.recommend(risk, cringe, roi, lifecycle)
	return DecisionJustification{
		Recommendation:    rec,
		JustificationText: text,
		RiskScore:         risk,
		Evidence: Evidence{
			TechnicalSignals:       append([]string{}, attribution.TopSignals...),
			Attribution:            append([]AttributionRecord{}, attribution.Drivers...),
			ExplanationMethod:      attribution.Method,
			BusinessInterpretation: interpretation,
			ReputationRisk: ReputationEvidence{
				IsCritical:  cringe.IsCringePoint,
				Severity:    cringe.Severity,
				Explanation: cringe.Explanation,
			},
			FinancialImpact: FinancialEvidence{
				EstimatedSavings: roi.EstimatedSavings,
				Confidence:       roi.Confidence,
				Basis:            roi.CalculationBasis,
			},
			LifecycleContext: LifecycleEvidence{
				Stage:           lifecycle.Stage,
				StrategicAdvice: lifecycle.StrategicAdvice,
			},
		},
		ConfidenceScore: roi.Confidence,
		Timestamp:       a.now().UTC(),
	}
}

func (a *Assembler) recommend(risk float64, cringe CringeResult, roi ROIResult, lifecycle LifecycleResult) (Recommendation, string) {
	// message.Printer is not safe for concurrent use.
	p := message.NewPrinter(language.English)
	savings := a.cfg.CurrencySymbol + p.Sprintf("%.2f", roi.EstimatedSavings)

	switch {
	case risk >= a.cfg.Bands.Critical || cringe.IsCringePoint:
		reputation := "no active reputation risk"
		if cringe.IsCringePoint {
			reputation = p.Sprintf("%s reputation risk", cringe.Severity)
		}
		return RecommendStop, p.Sprintf("Decision supported by: %.2f%% decline risk, %s, and %s potential savings.",
			risk, reputation, savings)
	case risk >= a.cfg.Bands.High:
		return RecommendExit, p.Sprintf("High decline probability (%.2f%%) indicates trend is in %s phase. Exit within 3-5 days to recover up to %s.",
			risk, lifecycle.Stage, savings)
	case risk >= a.cfg.Bands.Medium:
		return RecommendPivot, p.Sprintf("Moderate risk detected (%.2f%% decline risk). Trend is at %s stage. Adjust creative approach to extend lifecycle.",
			risk, lifecycle.Stage)
	default:
		return RecommendScale, p.Sprintf("Trend shows healthy indicators (%.2f%% stability, %.2f%% decline risk). %s phase presents growth opportunity.",
			100-risk, risk, lifecycle.Stage)
	}
}
