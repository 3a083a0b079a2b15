package netbench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/grobbelaar/cdntest/trial"
)

// RenderTable prints the TTFB comparison for human consumption.
func RenderTable(w io.Writer, comparison Comparison) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{
			"Variant", "Requests", "Failures", "TTFB median (ms)", "TTFB p90 (ms)", "Mean (ms)", "StdDev (ms)",
		}),
	)

	for _, row := range []struct {
		name  string
		stats VariantStats
	}{
		{string(trial.VariantOrigin), comparison.Origin},
		{string(trial.VariantCDN), comparison.CDN},
	} {
		table.Append([]string{
			row.name,
			strconv.Itoa(row.stats.Requests),
			strconv.Itoa(row.stats.Failures),
			orDash(row.stats.MedianMs),
			orDash(row.stats.P90Ms),
			orDash(row.stats.MeanMs),
			orDash(row.stats.StdDevMs),
		})
	}

	table.Render()

	if comparison.ImprovementMedianPct != nil {
		fmt.Fprintf(w, "CDN improvement at median: %.1f%%\n", *comparison.ImprovementMedianPct)
	}

	if comparison.ImprovementP90Pct != nil {
		fmt.Fprintf(w, "CDN improvement at p90:    %.1f%%\n", *comparison.ImprovementP90Pct)
	}
}

func orDash(value *float64) string {
	if value == nil {
		return "-"
	}

	return strconv.FormatFloat(*value, 'f', 2, 64)
}
