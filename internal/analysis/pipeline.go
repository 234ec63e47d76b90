package analysis

import (
	"fmt"
	"time"
)

// Evaluation is the output of stages one to four for one request.
type Evaluation struct {
	Features    FeatureVector  `json:"features"`
	Assessment  RiskAssessment `json:"assessment"`
	Attribution Explanation    `json:"attribution"`
	Judgments   JudgmentBundle `json:"judgments"`
}

// NarrativeRequest is what a narrative generator receives.
type NarrativeRequest struct {
	RiskScore     float64   `json:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	TopDrivers    []string  `json:"top_drivers"`
	Stage         Stage     `json:"lifecycle_stage"`
	IsCringePoint bool      `json:"is_cringe_point"`
}

// NarrativeRequest extracts the narrative collaborator's inputs.
func (e Evaluation) NarrativeRequest() NarrativeRequest {
	return NarrativeRequest{
		RiskScore:     e.Assessment.RiskScore,
		RiskLevel:     e.Assessment.RiskLevel,
		TopDrivers:    append([]string{}, e.Attribution.TopSignals...),
		Stage:         e.Judgments.Lifecycle.Stage,
		IsCringePoint: e.Judgments.Cringe.IsCringePoint,
	}
}

// Pipeline wires the five stages over one immutable configuration and
// model. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	cfg       ModelConfig
	model     ModelHandle
	ensemble  *RiskEnsemble
	explainer *Explainer
	assembler *Assembler
}

// NewPipeline validates cfg and builds the stages.
func NewPipeline(cfg ModelConfig, model ModelHandle) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	return &Pipeline{
		cfg:       cfg,
		model:     model,
		ensemble:  NewRiskEnsemble(cfg, model),
		explainer: NewExplainer(cfg),
		assembler: NewAssembler(cfg, time.Now),
	}, nil
}

// WithClock returns a copy of the pipeline stamping decisions with now.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	cp := *p
	cp.assembler = NewAssembler(p.cfg, now)
	return &cp
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() ModelConfig { return p.cfg }

// Model returns the statistical model handle.
func (p *Pipeline) Model() ModelHandle { return p.model }

// Evaluate runs scoring, attribution and the judgments. A non-positive
// budget selects the default daily budget.
func (p *Pipeline) Evaluate(fv FeatureVector, dailyBudget float64) Evaluation {
	fv = fv.normalized()
	assessment := p.ensemble.Score(fv)
	return Evaluation{
		Features:    fv,
		Assessment:  assessment,
		Attribution: p.explainer.Explain(fv, assessment.RiskScore, p.model),
		Judgments:   p.cfg.Judge(fv, assessment, dailyBudget),
	}
}

// Justify assembles the decision record. An empty narrative selects the
// attribution summary.
func (p *Pipeline) Justify(ev Evaluation, narrative string) DecisionJustification {
	return p.assembler.Assemble(AssemblyInput{
		RiskScore:   ev.Assessment.RiskScore,
		Attribution: &ev.Attribution,
		Cringe:      &ev.Judgments.Cringe,
		ROI:         &ev.Judgments.ROI,
		Lifecycle:   &ev.Judgments.Lifecycle,
		Narrative:   narrative,
	})
}

// Run evaluates and justifies without a narrative collaborator.
func (p *Pipeline) Run(fv FeatureVector, dailyBudget float64) (Evaluation, DecisionJustification) {
	ev := p.Evaluate(fv, dailyBudget)
	return ev, p.Justify(ev, "")
}
