package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func renderReport(r report) string {
	ev, d := r.Evaluation, r.Justification

	summary := [][]string{
		{"Recommendation", string(d.Recommendation)},
		{"Risk score", fmt.Sprintf("%.2f", d.RiskScore)},
		{"Risk level", string(ev.Assessment.RiskLevel)},
		{"Lifecycle stage", string(ev.Judgments.Lifecycle.Stage)},
		{"Cringe point", strconv.FormatBool(ev.Judgments.Cringe.IsCringePoint)},
		{"Estimated savings", fmt.Sprintf("%.2f", d.Evidence.FinancialImpact.EstimatedSavings)},
		{"Confidence", fmt.Sprintf("%.2f", d.ConfidenceScore)},
		{"Explanation", string(d.Evidence.ExplanationMethod)},
	}
	if r.Label != "" {
		summary = append([][]string{{"Input", r.Label}}, summary...)
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"Field", "Value"}, summary, nil))
	b.WriteString("\n")

	if len(ev.Attribution.Drivers) > 0 {
		rows := make([][]string, 0, len(ev.Attribution.Drivers))
		for _, rec := range ev.Attribution.Drivers {
			rows = append(rows, []string{rec.Label, rec.Feature, string(rec.Direction), fmt.Sprintf("%+.4f", rec.Contribution)})
		}
		b.WriteString(renderTable([]string{"Driver", "Signal", "Direction", "Contribution"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
		b.WriteString("\n")
	} else if len(ev.Attribution.TopSignals) > 0 {
		rows := make([][]string, 0, len(ev.Attribution.TopSignals))
		for _, s := range ev.Attribution.TopSignals {
			rows = append(rows, []string{s})
		}
		b.WriteString(renderTable([]string{"Driver"}, rows, nil))
		b.WriteString("\n")
	}

	if len(r.History) > 0 {
		rows := make([][]string, 0, len(r.History))
		for _, p := range r.History {
			rows = append(rows, []string{p.Timestamp, strconv.Itoa(p.Value)})
		}
		b.WriteString(renderTable([]string{"Time", "Mentions"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	b.WriteString(d.JustificationText)
	b.WriteString("\n")
	b.WriteString(d.Evidence.BusinessInterpretation)
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
