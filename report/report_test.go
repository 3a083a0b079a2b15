package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobbelaar/cdntest/trial"
)

func ms(v float64) *float64 {
	return &v
}

func scenarioRecords() []trial.Trial {
	timestamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []trial.Trial{}

	for i, v := range []float64{100, 120, 110} {
		records = append(records, trial.Trial{
			Timestamp: timestamp, PageID: "home", Variant: trial.VariantOrigin,
			RunIndex: i, ImagesLoadedMs: ms(v), AvgImageMs: ms(v / 2), ImagesTotal: 4,
		})
	}

	for i, v := range []float64{80, 85, 90} {
		records = append(records, trial.Trial{
			Timestamp: timestamp, PageID: "home", Variant: trial.VariantCDN,
			RunIndex: i, ImagesLoadedMs: ms(v), AvgImageMs: ms(v / 2), ImagesTotal: 4,
		})
	}

	return records
}

func TestComputeSummaryComparesVariants(t *testing.T) {
	assert := assert.New(t)

	summary := ComputeSummary(scenarioRecords())

	require.NotNil(t, summary.Origin.MedianMs)
	assert.Equal(110.0, *summary.Origin.MedianMs)
	require.NotNil(t, summary.CDN.MedianMs)
	assert.Equal(85.0, *summary.CDN.MedianMs)

	require.NotNil(t, summary.ImprovementMedianPct)
	assert.InDelta(22.7, *summary.ImprovementMedianPct, 0.05)

	require.NotNil(t, summary.Origin.P90Ms)
	assert.Equal(120.0, *summary.Origin.P90Ms)
	require.NotNil(t, summary.CDN.P90Ms)
	assert.Equal(90.0, *summary.CDN.P90Ms)
}

func TestComputeSummaryIsDeterministic(t *testing.T) {
	records := scenarioRecords()

	first := ComputeSummary(records)
	second := ComputeSummary(records)

	assert.Equal(t, first, second)
}

func TestComputeSummaryMissingSide(t *testing.T) {
	assert := assert.New(t)

	records := scenarioRecords()[:3] // origin only

	summary := ComputeSummary(records)

	assert.NotNil(summary.Origin.MedianMs)
	assert.Nil(summary.CDN.MedianMs)
	assert.Nil(summary.ImprovementMedianPct)
	assert.Nil(summary.ImprovementP90Pct)
}

func TestComputeSummaryCountsErrors(t *testing.T) {
	assert := assert.New(t)

	records := scenarioRecords()
	records = append(records, trial.Trial{
		Variant: trial.VariantOrigin, TimedOut: true, ErrorsCount: 2,
	})

	summary := ComputeSummary(records)
	assert.Equal(2, summary.Origin.Errors)
	assert.Equal(4, summary.Origin.Trials)
	// the failed trial has no timing and must not move the median
	assert.Equal(110.0, *summary.Origin.MedianMs)
}

func TestWriteCSVLayout(t *testing.T) {
	assert := assert.New(t)

	records := scenarioRecords()
	summary := ComputeSummary(records)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records, summary))

	lines, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)

	assert.Len(lines, 8) // header + 6 trials + TOTAL

	header := strings.Join(lines[0], ",")
	assert.Equal(
		"timestamp,page_id,variant,run,images_ms,avg_img_ms,ttfb_ms,lcp_ms,"+
			"images_total,images_failed,errors,origin_median,origin_p90,origin_avg_img,"+
			"cdn_median,cdn_p90,cdn_avg_img,improvement_%,improvement_p90_%",
		header,
	)

	// per-trial rows leave the eight summary columns blank
	first := lines[1]
	assert.Equal("2024-06-01T12:00:00Z", first[0])
	assert.Equal("home", first[1])
	assert.Equal("origin", first[2])
	assert.Equal("0", first[3])
	assert.Equal("100.0", first[4])
	for _, cell := range first[11:] {
		assert.Equal("", cell)
	}

	// exactly one trailing TOTAL row with the summary columns filled
	total := lines[len(lines)-1]
	assert.Equal("", total[0])
	assert.Equal("TOTAL", total[1])
	assert.Equal("-", total[2])
	assert.Equal("-", total[3])
	for _, cell := range total[4:11] {
		assert.Equal("", cell)
	}
	assert.Equal("110.0", total[11])
	assert.Equal("120.0", total[12])
	assert.Equal("85.0", total[14])
	assert.Equal("90.0", total[15])
	assert.Equal("22.7", total[17])
}

func TestWriteCSVNullFieldsBlank(t *testing.T) {
	assert := assert.New(t)

	records := []trial.Trial{{
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		PageID:    "home", Variant: trial.VariantOrigin, TimedOut: true, ErrorsCount: 1,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records, ComputeSummary(records)))

	lines, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)

	row := lines[1]
	assert.Equal("", row[4]) // images_ms
	assert.Equal("", row[5]) // avg_img_ms
	assert.Equal("1", row[10])
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer

	RenderTable(&buf, ComputeSummary(scenarioRecords()))

	out := buf.String()
	assert.Contains(t, out, "origin")
	assert.Contains(t, out, "cdn")
	assert.Contains(t, out, "22.7")
}
