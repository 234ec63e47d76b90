package analysis

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strings"
)

// ExplanationMethod records which attribution path produced the drivers.
type ExplanationMethod string

const (
	MethodShapley   ExplanationMethod = "shap"
	MethodRuleBased ExplanationMethod = "rule-based"
)

// Direction says whether a signal pushes the trend down or holds it up.
type Direction string

const (
	// DirectionNegative marks a signal that increases decline risk.
	DirectionNegative Direction = "negative"
	// DirectionPositive marks a signal that supports the trend.
	DirectionPositive Direction = "positive"
)

// StableDriver is the primary driver reported when nothing stands out.
const StableDriver = "Stable Trend Dynamics"

const combinedDegradation = "Combined signal degradation detected across multiple metrics"

// AttributionRecord is one ranked driver of the risk score.
type AttributionRecord struct {
	Feature      string    `json:"feature_name"`
	Label        string    `json:"business_label"`
	Contribution float64   `json:"signed_contribution"`
	Direction    Direction `json:"direction"`
}

// Explanation is the output of the Attribution Engine.
type Explanation struct {
	Method        ExplanationMethod   `json:"explanation_method"`
	Drivers       []AttributionRecord `json:"drivers"`
	Reasons       []string            `json:"reasons,omitempty"`
	TopSignals    []string            `json:"top_signals"`
	PrimaryDriver string              `json:"primary_driver"`
	Summary       string              `json:"summary"`
}

type driverLabel struct {
	adverse, favourable string
}

// attributedSignals are the players of the cooperative game, in tie-break order.
var attributedSignals = []string{
	SignalSentimentScore,
	SignalEngagementVelocity,
	SignalCommentFatigue,
	SignalInfluencerRatio,
	SignalPostingChange,
}

var driverLabels = map[string]driverLabel{
	SignalSentimentScore:     {"Audience sentiment has turned negative", "Audience sentiment remains supportive"},
	SignalEngagementVelocity: {"Engagement momentum is rapidly slowing", "Engagement momentum is holding up"},
	SignalCommentFatigue:     {"Content saturation detected (Audience Fatigue)", "Audience shows little fatigue"},
	SignalInfluencerRatio:    {"Key creators are disengaging from this trend", "Key creators remain engaged"},
	SignalPostingChange:      {"Posting frequency has dropped significantly", "Posting frequency is steady"},
}

// BusinessLabel returns the human-readable label of a signal given the sign
// of its contribution to risk.
func BusinessLabel(feature string, contribution float64) string {
	l, ok := driverLabels[feature]
	if !ok {
		return feature
	}
	if contribution < 0 {
		return l.favourable
	}
	return l.adverse
}

type rule struct {
	feature string
	fires   func(v float64) bool
}

// rules are evaluated in declaration order.
var rules = []rule{
	{SignalSentimentScore, func(v float64) bool { return v < -0.2 }},
	{SignalEngagementVelocity, func(v float64) bool { return v < -0.2 }},
	{SignalCommentFatigue, func(v float64) bool { return v > 0.4 }},
	{SignalInfluencerRatio, func(v float64) bool { return v < 0.3 }},
}

// Explainer attributes a risk score to its input signals.
type Explainer struct {
	threshold  float64
	topDrivers int
	background FeatureVector
}

// NewExplainer creates an explainer with the configured significance
// threshold and driver count.
func NewExplainer(cfg ModelConfig) *Explainer {
	top := cfg.TopDrivers
	if top < 1 {
		top = DefaultModelConfig().TopDrivers
	}
	return &Explainer{
		threshold:  cfg.SignificanceThreshold,
		topDrivers: top,
		background: NeutralFeatureVector(),
	}
}

// Explain uses Shapley attribution when a model is available and falls back
// to the threshold rules otherwise, or when no driver is significant.
func (x *Explainer) Explain(fv FeatureVector, riskScore float64, model ModelHandle) Explanation {
	fv = fv.normalized()

	if scorer, ok := model.Get(); ok {
		drivers := x.shapley(fv, scorer)
		if len(drivers) > 0 {
			top := drivers[:min(len(drivers), x.topDrivers)]
			labels := make([]string, len(top))
			for i, d := range top {
				labels[i] = d.Label
			}
			return Explanation{
				Method:        MethodShapley,
				Drivers:       drivers,
				TopSignals:    labels,
				PrimaryDriver: labels[0],
				Summary:       summarize(riskScore, labels, fmt.Sprintf("(SHAP contribution: %.2f)", top[0].Contribution)),
			}
		}
	}

	reasons := x.ruleReasons(fv, riskScore)
	top := reasons[:min(len(reasons), x.topDrivers)]
	primary := StableDriver
	if len(top) > 0 {
		primary = top[0]
	}
	return Explanation{
		Method:        MethodRuleBased,
		Drivers:       []AttributionRecord{},
		Reasons:       reasons,
		TopSignals:    top,
		PrimaryDriver: primary,
		Summary:       summarize(riskScore, append([]string{primary}, tail(top)...), ""),
	}
}

// shapley computes exact Shapley values over attributedSignals. Absent
// players take their background value; every other signal keeps its
// observed value.
func (x *Explainer) shapley(fv FeatureVector, scorer Scorer) []AttributionRecord {
	n := len(attributedSignals)
	values := make([]float64, 1<<n)
	coalition := fv.Clone()
	for mask := range values {
		for i, name := range attributedSignals {
			if mask&(1<<i) != 0 {
				coalition[name] = fv[name]
			} else {
				coalition[name] = x.background[name]
			}
		}
		p := scorer.PredictProbability(coalition)
		if !isFinite(p) {
			return nil
		}
		values[mask] = clip(p, 0, 1)
	}

	weights := make([]float64, n)
	for s := 0; s < n; s++ {
		weights[s] = factorial(s) * factorial(n-s-1) / factorial(n)
	}

	drivers := make([]AttributionRecord, 0, n)
	for i, name := range attributedSignals {
		phi := 0.0
		for mask := range values {
			if mask&(1<<i) != 0 {
				continue
			}
			phi += weights[bits.OnesCount(uint(mask))] * (values[mask|1<<i] - values[mask])
		}
		phi = roundTo(phi, featurePrecision)
		if math.Abs(phi) < x.threshold {
			continue
		}
		dir := DirectionNegative
		if phi < 0 {
			dir = DirectionPositive
		}
		drivers = append(drivers, AttributionRecord{
			Feature:      name,
			Label:        BusinessLabel(name, phi),
			Contribution: phi,
			Direction:    dir,
		})
	}

	sort.SliceStable(drivers, func(a, b int) bool {
		return math.Abs(drivers[a].Contribution) > math.Abs(drivers[b].Contribution)
	})
	return drivers
}

func (x *Explainer) ruleReasons(fv FeatureVector, riskScore float64) []string {
	reasons := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.fires(fv.Value(r.feature)) {
			reasons = append(reasons, driverLabels[r.feature].adverse)
		}
	}
	if len(reasons) == 0 && riskScore > 50 {
		reasons = append(reasons, combinedDegradation)
	}
	return reasons
}

// summarize renders the templated sentence. labels[0] is the primary driver.
func summarize(riskScore float64, labels []string, evidence string) string {
	var b strings.Builder
	b.WriteString("Analysis complete. ")
	primary := labels[0]
	switch {
	case riskScore > 50 && evidence != "":
		fmt.Fprintf(&b, "Mathematical analysis identifies %s as the primary risk factor %s.", primary, evidence)
	case riskScore > 50:
		fmt.Fprintf(&b, "Primary risk factor: %s.", primary)
	default:
		fmt.Fprintf(&b, "Trend appears stable with healthy engagement metrics; the leading signal is %s.", primary)
	}
	if rest := tail(labels); len(rest) > 0 {
		fmt.Fprintf(&b, " Additional factors include: %s.", strings.Join(rest, ", "))
	}
	return b.String()
}

func tail(s []string) []string {
	if len(s) < 2 {
		return nil
	}
	return s[1:]
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
