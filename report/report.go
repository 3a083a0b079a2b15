// Package report reduces trial records into per-variant summary statistics
// and renders the flat CSV report and the console table.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/grobbelaar/cdntest/stats"
	"github.com/grobbelaar/cdntest/trial"
)

// VariantSummary aggregates one arm of the comparison. Pointer fields are
// nil when the arm produced no valid sample.
type VariantSummary struct {
	Trials     int
	MedianMs   *float64
	P90Ms      *float64
	AvgImageMs *float64
	StdDevMs   *float64
	Errors     int
}

// Summary is computed once after all trials complete. Improvement fields are
// nil unless both arms have at least one valid sample and the origin median
// (or p90) is nonzero.
type Summary struct {
	Origin               VariantSummary
	CDN                  VariantSummary
	ImprovementMedianPct *float64
	ImprovementP90Pct    *float64
}

// ComputeSummary partitions records by variant and derives the summary. It is
// deterministic: the same input always yields identical output.
func ComputeSummary(records []trial.Trial) Summary {
	summary := Summary{
		Origin: summarizeVariant(records, trial.VariantOrigin),
		CDN:    summarizeVariant(records, trial.VariantCDN),
	}

	summary.ImprovementMedianPct = improvement(summary.Origin.MedianMs, summary.CDN.MedianMs)
	summary.ImprovementP90Pct = improvement(summary.Origin.P90Ms, summary.CDN.P90Ms)

	return summary
}

func summarizeVariant(records []trial.Trial, variant trial.Variant) VariantSummary {
	result := VariantSummary{}

	var loaded, avgImage []float64

	for _, record := range records {
		if record.Variant != variant {
			continue
		}

		result.Trials++
		result.Errors += record.ErrorsCount

		if record.ImagesLoadedMs != nil {
			loaded = append(loaded, *record.ImagesLoadedMs)
		}

		if record.AvgImageMs != nil {
			avgImage = append(avgImage, *record.AvgImageMs)
		}
	}

	if median, ok := stats.Median(loaded); ok {
		result.MedianMs = &median
	}

	if p90, ok := stats.Percentile(loaded, 0.9); ok {
		result.P90Ms = &p90
	}

	if avg, ok := stats.Median(avgImage); ok {
		result.AvgImageMs = &avg
	}

	if stdDev, ok := stats.StdDev(loaded); ok {
		result.StdDevMs = &stdDev
	}

	return result
}

func improvement(origin, cdn *float64) *float64 {
	if origin == nil || cdn == nil {
		return nil
	}

	value, ok := stats.Improvement(*origin, *cdn)
	if !ok {
		return nil
	}

	return &value
}

// csvHeader is the contract with downstream consumers; the column order is
// fixed.
var csvHeader = []string{
	"timestamp", "page_id", "variant", "run",
	"images_ms", "avg_img_ms", "ttfb_ms", "lcp_ms",
	"images_total", "images_failed", "errors",
	"origin_median", "origin_p90", "origin_avg_img",
	"cdn_median", "cdn_p90", "cdn_avg_img",
	"improvement_%", "improvement_p90_%",
}

// WriteCSV renders one row per trial followed by exactly one TOTAL row that
// carries the summary columns. Per-trial rows leave the summary columns
// blank; the TOTAL row leaves the per-trial columns blank.
func WriteCSV(w io.Writer, records []trial.Trial, summary Summary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}

	for _, record := range records {
		row := []string{
			record.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			record.PageID,
			string(record.Variant),
			strconv.Itoa(record.RunIndex),
			formatMs(record.ImagesLoadedMs),
			formatMs(record.AvgImageMs),
			formatMs(record.TTFBMs),
			formatMs(record.LCPMs),
			strconv.Itoa(record.ImagesTotal),
			strconv.Itoa(record.ImagesFailed),
			strconv.Itoa(record.ErrorsCount),
			"", "", "", "", "", "", "", "",
		}

		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, "failed to write trial row")
		}
	}

	total := []string{
		"", "TOTAL", "-", "-",
		"", "", "", "", "", "", "",
		formatMs(summary.Origin.MedianMs),
		formatMs(summary.Origin.P90Ms),
		formatMs(summary.Origin.AvgImageMs),
		formatMs(summary.CDN.MedianMs),
		formatMs(summary.CDN.P90Ms),
		formatMs(summary.CDN.AvgImageMs),
		formatMs(summary.ImprovementMedianPct),
		formatMs(summary.ImprovementP90Pct),
	}

	if err := writer.Write(total); err != nil {
		return errors.Wrap(err, "failed to write summary row")
	}

	writer.Flush()

	return errors.Wrap(writer.Error(), "failed to flush csv")
}

func formatMs(value *float64) string {
	if value == nil {
		return ""
	}

	return strconv.FormatFloat(*value, 'f', 1, 64)
}

// RenderTable prints the per-variant summary for human consumption.
func RenderTable(w io.Writer, summary Summary) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{
			"Variant", "Trials", "Median (ms)", "P90 (ms)", "Avg image (ms)", "StdDev (ms)", "Errors",
		}),
	)

	for _, row := range []struct {
		name    string
		variant VariantSummary
	}{
		{string(trial.VariantOrigin), summary.Origin},
		{string(trial.VariantCDN), summary.CDN},
	} {
		table.Append([]string{
			row.name,
			strconv.Itoa(row.variant.Trials),
			orDash(row.variant.MedianMs),
			orDash(row.variant.P90Ms),
			orDash(row.variant.AvgImageMs),
			orDash(row.variant.StdDevMs),
			strconv.Itoa(row.variant.Errors),
		})
	}

	table.Render()

	if summary.ImprovementMedianPct != nil {
		fmt.Fprintf(w, "CDN improvement at median: %.1f%%\n", *summary.ImprovementMedianPct)
	}

	if summary.ImprovementP90Pct != nil {
		fmt.Fprintf(w, "CDN improvement at p90:    %.1f%%\n", *summary.ImprovementP90Pct)
	}
}

func orDash(value *float64) string {
	if value == nil {
		return "-"
	}

	return strconv.FormatFloat(*value, 'f', 1, 64)
}
