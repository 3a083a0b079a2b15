package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobbelaar/cdntest/report"
	"github.com/grobbelaar/cdntest/trial"
)

func TestWriteReportFile(t *testing.T) {
	assert := assert.New(t)

	loaded := 123.4
	records := []trial.Trial{{
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		PageID:    "home", Variant: trial.VariantCDN, ImagesLoadedMs: &loaded, ImagesTotal: 3,
	}}

	dir := t.TempDir()
	path, err := WriteReportFile(dir, "report.csv", records, report.ComputeSummary(records))
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "report.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.True(strings.HasPrefix(content, "timestamp,page_id,variant,run,"))
	assert.Contains(content, "home,cdn,0,123.4")
	assert.Contains(content, ",TOTAL,-,-,")
}

func TestWriteReportFileGeneratesName(t *testing.T) {
	path, err := WriteReportFile(t.TempDir(), "", nil, report.Summary{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".csv"))
}
