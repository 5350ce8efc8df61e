package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"safeshipper/manifests/internal/client"
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
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jobRows(jobs []client.ManifestJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.FileName,
			string(j.Status),
			j.DocumentStatus,
			fmt.Sprintf("%d/%d", j.ConfirmedDGCount, j.DGMatchesCount),
		})
	}
	return rows
}

func renderJobs(jobs []client.ManifestJob) string {
	return renderTable(
		[]string{"Manifest", "File", "Status", "Document", "Confirmed"},
		jobRows(jobs),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func renderMatches(matches []client.DangerousGoodMatch) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		qty, weight := "-", "-"
		if m.Quantity != nil {
			qty = strconv.Itoa(*m.Quantity)
		}
		if m.WeightKg != nil {
			weight = strconv.FormatFloat(*m.WeightKg, 'f', -1, 64)
		}
		confirmed := ""
		if m.IsConfirmed {
			confirmed = "yes"
		}
		rows = append(rows, []string{
			m.UNNumber,
			m.ProperShippingName,
			m.HazardClass,
			fmt.Sprintf("%.2f", m.ConfidenceScore),
			string(m.MatchType),
			qty,
			weight,
			confirmed,
		})
	}
	return renderTable(
		[]string{"UN", "Name", "Class", "Score", "Match", "Qty", "Kg", "Confirmed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderCompatibility(cmd *cobra.Command, result client.CompatibilityResult) {
	out := cmd.OutOrStdout()
	if result.IsCompatible {
		fmt.Fprintln(out, "Compatibility: OK")
	} else {
		fmt.Fprintln(out, "Compatibility: CONFLICT")
	}
	for _, c := range result.Conflicts {
		fmt.Fprintf(out, "  conflict: %s\n", c)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  warning:  %s\n", w)
	}
}
