// Package netbench is the raw network counterpart of the browser benchmark:
// plain GET requests against the origin and CDN URLs, TTFB measured with
// httptrace, reduced through the same statistics core. It isolates transport
// latency from page rendering effects.
package netbench

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"

	"github.com/grobbelaar/cdntest/stats"
	"github.com/grobbelaar/cdntest/trial"
)

type Config struct {
	OriginURL string
	CDNURL    string
	Protocol  Protocol
	Rounds    int
	Interval  time.Duration
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
}

// Result is one request against one variant.
type Result struct {
	Variant    trial.Variant
	Round      int
	TTFBMs     float64
	StatusCode int
	Proto      string
	Reused     bool
	Err        string
}

type Bench struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func New(cfg Config) (*Bench, error) {
	if cfg.OriginURL == "" || cfg.CDNURL == "" {
		return nil, errors.New("both origin and cdn urls are required")
	}

	if cfg.Rounds <= 0 {
		cfg.Rounds = 10
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := newClient(cfg.Protocol, cfg.Timeout, cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	return &Bench{
		cfg:    cfg,
		client: client,
		log:    log2.With().Str("component", "netbench").Caller().Logger(),
	}, nil
}

// Run performs all rounds. Within a round both variants are requested in
// parallel so they see the same network conditions; rounds are separated by
// the configured interval.
func (b *Bench) Run(ctx context.Context) []Result {
	results := make([]Result, 0, b.cfg.Rounds*2)

	targets := []struct {
		variant trial.Variant
		url     string
	}{
		{trial.VariantOrigin, b.cfg.OriginURL},
		{trial.VariantCDN, b.cfg.CDNURL},
	}

	for round := 0; round < b.cfg.Rounds; round++ {
		roundResults := make([]Result, len(targets))

		var wg sync.WaitGroup

		for i, target := range targets {
			wg.Add(1)

			go func(slot int, variant trial.Variant, url string) {
				defer wg.Done()
				roundResults[slot] = b.measure(ctx, variant, round, url)
			}(i, target.variant, target.url)
		}

		wg.Wait()

		for _, result := range roundResults {
			if result.Err != "" {
				b.log.Warn().
					Str("variant", string(result.Variant)).
					Int("round", result.Round).
					Str("error", result.Err).
					Msg("request failed")
			} else {
				b.log.Info().
					Str("variant", string(result.Variant)).
					Int("round", result.Round).
					Float64("ttfb_ms", result.TTFBMs).
					Str("proto", result.Proto).
					Bool("reused", result.Reused).
					Msg("request measured")
			}
		}

		results = append(results, roundResults...)

		if round < b.cfg.Rounds-1 && b.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(b.cfg.Interval):
			}
		}
	}

	return results
}

func (b *Bench) measure(ctx context.Context, variant trial.Variant, round int, url string) Result {
	result := Result{Variant: variant, Round: round}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	if b.cfg.UserAgent != "" {
		request.Header.Set("User-Agent", b.cfg.UserAgent)
	}

	var (
		start  time.Time
		ttfb   time.Duration
		reused bool
	)

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			reused = info.Reused
		},
		GotFirstResponseByte: func() {
			ttfb = time.Since(start)
		},
	}

	request = request.WithContext(httptrace.WithClientTrace(request.Context(), trace))

	start = time.Now()

	response, err := b.client.Do(request)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	defer response.Body.Close()

	// drain so the connection can be reused by the next round
	_, _ = io.Copy(io.Discard, response.Body)

	result.TTFBMs = float64(ttfb.Microseconds()) / 1000.0
	result.StatusCode = response.StatusCode
	result.Proto = response.Proto
	result.Reused = reused

	return result
}

// VariantStats summarizes one arm of the network comparison.
type VariantStats struct {
	Requests int
	Failures int
	MedianMs *float64
	P90Ms    *float64
	MeanMs   *float64
	StdDevMs *float64
}

type Comparison struct {
	Origin               VariantStats
	CDN                  VariantStats
	ImprovementMedianPct *float64
	ImprovementP90Pct    *float64
}

// Summarize reduces raw results through the shared statistics core.
func Summarize(results []Result) Comparison {
	comparison := Comparison{
		Origin: summarize(results, trial.VariantOrigin),
		CDN:    summarize(results, trial.VariantCDN),
	}

	comparison.ImprovementMedianPct = improvement(comparison.Origin.MedianMs, comparison.CDN.MedianMs)
	comparison.ImprovementP90Pct = improvement(comparison.Origin.P90Ms, comparison.CDN.P90Ms)

	return comparison
}

func summarize(results []Result, variant trial.Variant) VariantStats {
	out := VariantStats{}

	var values []float64

	for _, result := range results {
		if result.Variant != variant {
			continue
		}

		out.Requests++

		if result.Err != "" {
			out.Failures++
			continue
		}

		values = append(values, result.TTFBMs)
	}

	if median, ok := stats.Median(values); ok {
		out.MedianMs = &median
	}

	if p90, ok := stats.Percentile(values, 0.9); ok {
		out.P90Ms = &p90
	}

	if mean, ok := stats.Mean(values); ok {
		out.MeanMs = &mean
	}

	if stdDev, ok := stats.StdDev(values); ok {
		out.StdDevMs = &stdDev
	}

	return out
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
