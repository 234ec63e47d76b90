package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/config"
	"github.com/ZanzyTHEbar/trendfall/internal/narrative"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	ruleBased  bool
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "trendctl",
		Short:         "Score trend feature vectors offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&opts.ruleBased, "rule-based", false, "skip the statistical model")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print the decision as JSON")

	root.AddCommand(newScoreCmd(opts))
	root.AddCommand(newSimulateCmd(opts))
	root.AddCommand(newSignalsCmd())
	return root
}

// scorer is the offline pipeline plus the template narrative
type scorer struct {
	pipeline *analysis.Pipeline
	narrator *narrative.TemplateGenerator
}

func (o *rootOptions) newScorer() (*scorer, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	model := analysis.NoModel()
	if cfg.Statistical.Enabled && !o.ruleBased {
		model = analysis.SomeModel(analysis.TrainLogisticModel(cfg.Statistical.Training))
	}
	pipeline, err := analysis.NewPipeline(cfg.Model, model)
	if err != nil {
		return nil, err
	}
	narrator, err := narrative.NewTemplateGenerator(cfg.Narrative.Template)
	if err != nil {
		return nil, err
	}
	return &scorer{pipeline: pipeline, narrator: narrator}, nil
}

func (s *scorer) run(ctx context.Context, fv analysis.FeatureVector, budget float64) (analysis.Evaluation, analysis.DecisionJustification) {
	ev := s.pipeline.Evaluate(fv, budget)
	text, err := s.narrator.Generate(ctx, ev.NarrativeRequest())
	if err != nil {
		text = ""
	}
	return ev, s.pipeline.Justify(ev, text)
}

type report struct {
	Label         string                         `json:"label,omitempty"`
	Evaluation    analysis.Evaluation            `json:"evaluation"`
	Justification analysis.DecisionJustification `json:"justification"`
	History       []analysis.TrendPoint          `json:"history,omitempty"`
}

func (o *rootOptions) print(w io.Writer, r report) error {
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, err := fmt.Fprintln(w, renderReport(r))
	return err
}
