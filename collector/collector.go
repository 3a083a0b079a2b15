// Package collector turns the raw per-image records reported by the in-page
// probe into a classified snapshot with aggregate timing.
//
// Completed images whose timing is unavailable (cross-origin responses
// without Timing-Allow-Origin) count as loaded but are excluded from the
// duration aggregates. On pages with many such images the aggregates are
// biased downward; this is intentional and documented rather than guessed
// around.
package collector

import (
	"net/url"
	"strings"
)

// Sample is one measured image within a trial. Samples are scoped to the
// trial that produced them and discarded once the trial record is built.
type Sample struct {
	URL          string
	Host         string
	ResponseEnd  float64
	TTFBMs       float64
	DurationMs   float64
	TransferSize float64

	// NoTiming marks an image that finished loading but has no usable
	// Resource Timing entry. It counts as loaded and contributes to no
	// duration math.
	NoTiming bool
}

// Snapshot is the state of a page's qualifying images at one poll.
type Snapshot struct {
	// Samples holds every loaded image, including no-timing placeholders.
	Samples []Sample

	// Failed holds URLs of images that completed with zero natural size.
	Failed []string

	// Pending holds URLs of images that have not finished loading.
	Pending []string

	// Total is the number of qualifying images on the page.
	Total int

	// ImagesOnlyMs is the wall-clock span from the first image request
	// start to the last response completion, across fully timed samples.
	ImagesOnlyMs *float64

	// AvgImageMs is the mean of individual load durations of fully timed
	// samples.
	AvgImageMs *float64
}

// Reduce classifies the probe output under filter and computes the aggregate
// image timing.
func Reduce(raw []RawImage, filter HostFilter) Snapshot {
	snapshot := Snapshot{}

	var (
		minStart float64
		maxEnd   float64
		sum      float64
		timed    int
	)

	for _, img := range raw {
		host := hostOf(img.URL)
		if host == "" || !filter.Qualifies(host) {
			continue
		}

		snapshot.Total++

		switch {
		case img.Complete && img.NaturalWidth == 0:
			snapshot.Failed = append(snapshot.Failed, img.URL)
		case img.Complete && img.HasTiming:
			sample := Sample{
				URL:          img.URL,
				Host:         host,
				ResponseEnd:  img.ResponseEnd,
				TTFBMs:       img.ResponseStart - img.StartTime,
				DurationMs:   img.Duration,
				TransferSize: img.TransferSize,
			}
			snapshot.Samples = append(snapshot.Samples, sample)

			start := img.ResponseEnd - img.Duration
			if timed == 0 || start < minStart {
				minStart = start
			}

			if timed == 0 || img.ResponseEnd > maxEnd {
				maxEnd = img.ResponseEnd
			}

			sum += img.Duration
			timed++
		case img.Complete:
			snapshot.Samples = append(snapshot.Samples, Sample{
				URL:      img.URL,
				Host:     host,
				NoTiming: true,
			})
		default:
			snapshot.Pending = append(snapshot.Pending, img.URL)
		}
	}

	if timed > 0 {
		span := maxEnd - minStart
		avg := sum / float64(timed)
		snapshot.ImagesOnlyMs = &span
		snapshot.AvgImageMs = &avg
	}

	return snapshot
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Hostname())
}
