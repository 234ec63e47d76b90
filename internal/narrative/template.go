package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/osteele/liquid"
)

// DefaultTemplate is the offline narrative
const DefaultTemplate = `This trend is in {{ stage }} phase with {{ risk | round: 1 }}% decline risk, primarily driven by {{ driver | downcase }}.` +
	`{% if cringe %} Campaign continuation risks brand reputation damage.{% endif %}` +
	` Analysis indicates {{ urgency }}.`

// Urgency maps the configured risk band to the action horizon used in narratives
func Urgency(level analysis.RiskLevel) string {
	switch level {
	case analysis.RiskCritical:
		return "immediate action required within 24 hours"
	case analysis.RiskHigh:
		return "exit strategy should be prepared within 3-5 days"
	case analysis.RiskMedium:
		return "content pivot recommended within 1-2 weeks"
	default:
		return "monitoring recommended, trend remains stable"
	}
}

// TemplateGenerator renders a Liquid template without any network call
type TemplateGenerator struct {
	tpl *liquid.Template
}

// NewTemplateGenerator parses source once. An empty source selects DefaultTemplate.
func NewTemplateGenerator(source string) (*TemplateGenerator, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultTemplate
	}

	tpl, err := liquid.NewEngine().ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse narrative template: %w", err)
	}
	return &TemplateGenerator{tpl: tpl}, nil
}

// Generate renders the template for req
func (g *TemplateGenerator) Generate(_ context.Context, req analysis.NarrativeRequest) (string, error) {
	driver := "market dynamics"
	if len(req.TopDrivers) > 0 {
		driver = req.TopDrivers[0]
	}

	out, err := g.tpl.RenderString(map[string]any{
		"stage":   string(req.Stage),
		"risk":    req.RiskScore,
		"driver":  driver,
		"drivers": req.TopDrivers,
		"cringe":  req.IsCringePoint,
		"urgency": Urgency(req.RiskLevel),
	})
	if err != nil {
		return "", fmt.Errorf("render narrative template: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyNarrative
	}
	return out, nil
}
