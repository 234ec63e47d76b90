// Package decision runs one decision request end to end: acquisition,
// feature engineering, scoring, narrative and audit.
package decision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/acquisition"
	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/database"
	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/featurestore"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/narrative"
	"github.com/google/uuid"
)

const maxInputLength = 2048

// Acquirer resolves an input into metadata and comments
type Acquirer interface {
	Acquire(ctx context.Context, input string) (acquisition.Acquisition, error)
}

// Narrator produces the business interpretation text
type Narrator interface {
	GenerateWithSource(ctx context.Context, req analysis.NarrativeRequest) (string, narrative.Source, error)
}

// AuditLog persists decisions
type AuditLog interface {
	Record(ctx context.Context, e database.AuditEntry) (*database.DecisionRecord, error)
	Get(ctx context.Context, requestID string) (*database.DecisionRecord, error)
	Recent(ctx context.Context, limit int) ([]*database.DecisionRecord, error)
}

// Request asks for a decision about a video URL, video id or topic
type Request struct {
	Input       string  `json:"input"`
	DailyBudget float64 `json:"daily_budget,omitempty"`
	Simulate    bool    `json:"simulate,omitempty"`
}

// FeatureRequest asks for a decision about a caller-supplied feature map
type FeatureRequest struct {
	Features    map[string]float64 `json:"features"`
	DailyBudget float64            `json:"daily_budget,omitempty"`
	Label       string             `json:"label,omitempty"`
}

// Result is the full response for one decision
type Result struct {
	RequestID  string             `json:"request_id"`
	Input      string             `json:"input,omitempty"`
	DataSource acquisition.Source `json:"data_source"`
	analysis.Evaluation
	Justification   analysis.DecisionJustification `json:"justification"`
	NarrativeSource narrative.Source               `json:"narrative_source"`
	History         []analysis.TrendPoint          `json:"history,omitempty"`
	AuditDigest     string                         `json:"audit_digest,omitempty"`
}

// Options wires a Service. Pipeline and Engineer are required.
type Options struct {
	Pipeline         *analysis.Pipeline
	Engineer         *analysis.FeatureEngineer
	Acquirer         Acquirer
	Store            featurestore.Store
	Narrator         Narrator
	Audit            AuditLog
	Metrics          *monitoring.Metrics
	Logger           *monitoring.Logger
	SimulateOnNoData bool
}

// Service is safe for concurrent use
type Service struct {
	opts  Options
	newID func() string
}

// NewService validates opts
func NewService(opts Options) (*Service, error) {
	if opts.Pipeline == nil || opts.Engineer == nil {
		return nil, errors.New("decision: pipeline and engineer are required")
	}
	if opts.Store == nil {
		opts.Store = featurestore.NewMemoryStore(time.Minute)
	}
	return &Service{opts: opts, newID: uuid.NewString}, nil
}

// Analyze acquires data for req.Input (or simulates it) and decides
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, apperrors.NewValidationError("input is required")
	}
	if len(input) > maxInputLength {
		return nil, apperrors.NewValidationError("input is too long", fmt.Sprintf("max %d bytes", maxInputLength))
	}
	if err := validateBudget(req.DailyBudget); err != nil {
		return nil, err
	}

	start := time.Now()
	simulate := req.Simulate

	var acq acquisition.Acquisition
	if !simulate {
		if s.opts.Acquirer == nil {
			simulate = true
		} else {
			var err error
			acq, err = s.opts.Acquirer.Acquire(ctx, input)
			switch {
			case err == nil:
			case errors.Is(err, acquisition.ErrNoData) && s.opts.SimulateOnNoData:
				s.fallback("acquisition", "simulation", err.Error())
				simulate = true
			case errors.Is(err, acquisition.ErrNoData):
				return nil, apperrors.NewNotFoundError("trend data", input)
			default:
				return nil, err
			}
		}
	}
	s.observe("acquisition", start)

	var fv analysis.FeatureVector
	var history []analysis.TrendPoint
	if simulate {
		var sim analysis.Simulation
		acq, sim = acquisition.Simulated(input)
		fv, history = sim.Features, sim.History
	} else {
		engineerStart := time.Now()
		fv = s.engineer(acq)
		history = acq.History
		s.observe("feature_engineering", engineerStart)
	}

	return s.decide(ctx, start, input, acq.Source, fv, req.DailyBudget, history)
}

// AnalyzeFeatures decides over a caller-supplied partial feature map.
// Unknown keys are rejected; missing ones take their neutral defaults.
func (s *Service) AnalyzeFeatures(ctx context.Context, req FeatureRequest) (*Result, error) {
	if err := validateBudget(req.DailyBudget); err != nil {
		return nil, err
	}
	fv, err := analysis.NewFeatureVector(req.Features)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid feature vector", err.Error())
	}
	return s.decide(ctx, time.Now(), strings.TrimSpace(req.Label), acquisition.SourceFeatures, fv, req.DailyBudget, nil)
}

// Get returns an audited decision
func (s *Service) Get(ctx context.Context, requestID string) (*database.DecisionRecord, error) {
	if s.opts.Audit == nil {
		return nil, apperrors.NewNotFoundError("decision", requestID)
	}
	rec, err := s.opts.Audit.Get(ctx, requestID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("decision", requestID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load decision", err)
	}
	return rec, nil
}

// Recent lists audited decisions, newest first
func (s *Service) Recent(ctx context.Context, limit int) ([]*database.DecisionRecord, error) {
	if s.opts.Audit == nil {
		return []*database.DecisionRecord{}, nil
	}
	records, err := s.opts.Audit.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list decisions", err)
	}
	return records, nil
}

// engineer builds the vector. Text-only acquisitions keep the comment
// signals and leave engagement signals at their neutral defaults.
func (s *Service) engineer(acq acquisition.Acquisition) analysis.FeatureVector {
	full := s.opts.Engineer.Compute(acq.Metadata, acq.Comments)
	if acq.HasMetrics {
		return full
	}

	partial := make(map[string]float64, len(textSignals)+1)
	for _, name := range textSignals {
		partial[name] = full[name]
	}
	if acq.Metadata.PublishedAt != "" {
		partial[analysis.SignalTrendAge] = full[analysis.SignalTrendAge]
	}
	fv, _ := analysis.NewFeatureVector(partial)
	return fv
}

var textSignals = []string{
	analysis.SignalSentimentScore,
	analysis.SignalCommentFatigue,
	analysis.SignalFatigueKeywordRatio,
	analysis.SignalFormatRepetition,
	analysis.SignalCommentSentimentScore,
}

func (s *Service) decide(ctx context.Context, start time.Time, input string, source acquisition.Source,
	fv analysis.FeatureVector, budget float64, history []analysis.TrendPoint) (*Result, error) {
	requestID := s.newID()

	scored := s.handoff(ctx, requestID, fv)

	stageStart := time.Now()
	ev := s.opts.Pipeline.Evaluate(scored, budget)
	s.observe("evaluation", stageStart)

	stageStart = time.Now()
	text, narrativeSource := s.narrate(ctx, ev)
	s.observe("narrative", stageStart)

	justification := s.opts.Pipeline.Justify(ev, text)

	result := &Result{
		RequestID:       requestID,
		Input:           input,
		DataSource:      source,
		Evaluation:      ev,
		Justification:   justification,
		NarrativeSource: narrativeSource,
		History:         history,
	}
	result.AuditDigest = s.audit(ctx, result)

	duration := time.Since(start)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordDecision(string(ev.Assessment.RiskLevel), string(justification.Recommendation),
			string(ev.Attribution.Method), justification.RiskScore)
	}
	if s.opts.Logger != nil {
		s.opts.Logger.AnalysisLogger(requestID, string(source), justification.RiskScore,
			string(ev.Assessment.RiskLevel), string(justification.Recommendation), string(ev.Attribution.Method), duration)
	}
	return result, nil
}

// handoff writes the vector under the request id and reads it back once.
// A failing store degrades to the in-hand vector.
func (s *Service) handoff(ctx context.Context, requestID string, fv analysis.FeatureVector) analysis.FeatureVector {
	if err := s.opts.Store.Put(ctx, requestID, fv); err != nil {
		s.fallback("featurestore", "in_process", err.Error())
		return fv
	}
	taken, err := s.opts.Store.Take(ctx, requestID)
	if err != nil {
		s.fallback("featurestore", "in_process", err.Error())
		return fv
	}
	return taken
}

func (s *Service) narrate(ctx context.Context, ev analysis.Evaluation) (string, narrative.Source) {
	if s.opts.Narrator == nil {
		return "", narrative.SourceNone
	}
	text, source, err := s.opts.Narrator.GenerateWithSource(ctx, ev.NarrativeRequest())
	if err != nil {
		s.fallback("narrative", "attribution_summary", err.Error())
		return "", narrative.SourceNone
	}
	return text, source
}

func (s *Service) audit(ctx context.Context, result *Result) string {
	if s.opts.Audit == nil {
		return ""
	}

	stageStart := time.Now()
	rec, err := s.opts.Audit.Record(ctx, database.AuditEntry{
		RequestID:         result.RequestID,
		Input:             result.Input,
		DataSource:        string(result.DataSource),
		RiskScore:         result.Justification.RiskScore,
		RiskLevel:         string(result.Assessment.RiskLevel),
		Recommendation:    string(result.Justification.Recommendation),
		ExplanationMethod: string(result.Attribution.Method),
		Payload:           result,
		CreatedAt:         result.Justification.Timestamp,
	})
	s.observe("audit", stageStart)
	if err != nil {
		if s.opts.Logger != nil {
			s.opts.Logger.Error("Decision audit failed", "request_id", result.RequestID, "error", err)
		}
		s.fallback("audit", "skipped", err.Error())
		return ""
	}
	return rec.Digest
}

func (s *Service) observe(stage string, start time.Time) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveStage(stage, time.Since(start))
	}
}

func (s *Service) fallback(component, to, reason string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordFallback(component, to)
	}
	if s.opts.Logger != nil {
		s.opts.Logger.FallbackLogger(component, to, reason)
	}
}

func validateBudget(budget float64) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return apperrors.NewValidationError("daily_budget must be a non-negative number")
	}
	return nil
}
