// Package store persists run output: the local CSV report, optional postgres
// persistence of trial records and optional S3 upload of the report file.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/grobbelaar/cdntest/report"
	"github.com/grobbelaar/cdntest/trial"
)

// WriteReportFile writes the CSV report under dir and returns its path. When
// name is empty a timestamped file name is generated.
func WriteReportFile(dir, name string, records []trial.Trial, summary report.Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	if name == "" {
		name = "cdntest_" + time.Now().Format("2006-01-02_15-04-05") + ".csv"
	}

	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create report file")
	}

	defer file.Close()

	if err := report.WriteCSV(file, records, summary); err != nil {
		return "", errors.Wrap(err, "failed to write report")
	}

	return path, nil
}
