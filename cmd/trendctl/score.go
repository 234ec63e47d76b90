package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/spf13/cobra"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		set    []string
		budget float64
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a feature vector read from a JSON file and/or --set pairs",
		Example: `  trendctl score --file features.json
  trendctl score --set sentiment_score=-0.7 --set comment_fatigue=0.9 --budget 20000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			partial, err := readFeatures(file, set)
			if err != nil {
				return err
			}
			fv, err := analysis.NewFeatureVector(partial)
			if err != nil {
				return err
			}
			if budget < 0 {
				return fmt.Errorf("--budget must be non-negative")
			}

			s, err := opts.newScorer()
			if err != nil {
				return err
			}
			ev, decision := s.run(cmd.Context(), fv, budget)
			return opts.print(cmd.OutOrStdout(), report{Label: file, Evaluation: ev, Justification: decision})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON object of signal name to value")
	cmd.Flags().StringArrayVar(&set, "set", nil, "signal=value, may be repeated; overrides --file")
	cmd.Flags().Float64Var(&budget, "budget", 0, "daily budget; 0 uses the configured default")
	return cmd
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var budget float64
	cmd := &cobra.Command{
		Use:   "simulate <topic>",
		Short: "Score the seeded simulation for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")
			sim := analysis.Simulate(topic)

			s, err := opts.newScorer()
			if err != nil {
				return err
			}
			ev, decision := s.run(cmd.Context(), sim.Features, budget)
			return opts.print(cmd.OutOrStdout(), report{
				Label:         topic,
				Evaluation:    ev,
				Justification: decision,
				History:       sim.History,
			})
		},
	}
	cmd.Flags().Float64Var(&budget, "budget", 0, "daily budget; 0 uses the configured default")
	return cmd
}

func newSignalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "List the canonical signals with their neutral values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			neutral := analysis.NeutralFeatureVector()
			rows := make([][]string, 0, len(neutral))
			for _, name := range analysis.SignalNames() {
				rows = append(rows, []string{name, formatFloat(neutral[name])})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Signal", "Neutral"}, rows, []columnAlignment{alignLeft, alignRight}))
			return err
		},
	}
}

func readFeatures(file string, set []string) (map[string]float64, error) {
	partial := map[string]float64{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}
		if err := json.Unmarshal(data, &partial); err != nil {
			return nil, fmt.Errorf("parse features %s: %w", file, err)
		}
	}
	for _, pair := range set {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want signal=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", pair, err)
		}
		partial[strings.TrimSpace(name)] = v
	}
	return partial, nil
}
