package trial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"

	"github.com/grobbelaar/cdntest/collector"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultMaxImageWait      = 60 * time.Second
	defaultPollInterval      = 200 * time.Millisecond
	defaultScrollStepDelay   = 150 * time.Millisecond

	progressInterval = 5 * time.Second

	// fraction of the viewport height covered by one auto-scroll step
	scrollStepFraction = 0.85
)

type Config struct {
	NavigationTimeout time.Duration
	MaxImageWait      time.Duration
	PollInterval      time.Duration
	ScrollStepDelay   time.Duration
	Verbose           bool
	IgnoreHosts       []string
	AllowHosts        []string
}

// Runner executes one trial at a time against an Engine. Each trial gets its
// own isolated session, which is closed unconditionally when the trial ends.
type Runner struct {
	engine Engine
	cfg    Config
	filter collector.HostFilter
	log    zerolog.Logger
}

func NewRunner(engine Engine, cfg Config) *Runner {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}

	if cfg.MaxImageWait <= 0 {
		cfg.MaxImageWait = defaultMaxImageWait
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.ScrollStepDelay <= 0 {
		cfg.ScrollStepDelay = defaultScrollStepDelay
	}

	ignore := cfg.IgnoreHosts
	if ignore == nil {
		ignore = collector.DefaultIgnoredHosts
	}

	return &Runner{
		engine: engine,
		cfg:    cfg,
		filter: collector.HostFilter{Ignore: ignore, Allow: cfg.AllowHosts},
		log:    log2.With().Str("component", "trial_runner").Caller().Logger(),
	}
}

// Run measures one page load and always returns a record, converting every
// failure into result fields instead of propagating it.
func (r *Runner) Run(ctx context.Context, runID uuid.UUID, pageID string, variant Variant, runIndex int, pageURL string) Trial {
	log := r.log.With().
		Str("page", pageID).
		Str("variant", string(variant)).
		Int("run", runIndex).
		Logger()

	result := Trial{
		ID:        uuid.New(),
		RunID:     runID,
		PageID:    pageID,
		Variant:   variant,
		RunIndex:  runIndex,
		Timestamp: time.Now(),
	}

	session, err := r.engine.NewSession(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to open browsing session")
		result.TimeoutReason = strPtr(ReasonNavigationError)

		return result
	}

	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browsing session")
		}
	}()

	log.Debug().Str("url", pageURL).Msg("navigating")

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	err = session.Navigate(navCtx, pageURL)

	cancel()

	if err != nil {
		reason := ReasonNavigationError
		if isTimeout(err) {
			reason = ReasonNavigationTimeout
		}

		log.Error().Err(err).Str("reason", reason).Msg("navigation failed")
		// only timeout-class failures carry the timeout flag
		result.TimedOut = reason == ReasonNavigationTimeout
		result.TimeoutReason = strPtr(reason)

		return result
	}

	tracking := time.Now()

	r.scroll(ctx, session)

	snapshot, reason := r.waitForImages(ctx, session, log)
	elapsed := float64(time.Since(tracking).Milliseconds())

	result.ImagesTotal = snapshot.Total
	result.ImagesFailed = len(snapshot.Failed)
	result.ImagesPending = len(snapshot.Pending)
	result.ErrorsCount = len(snapshot.Failed)
	result.TimeoutReason = reason
	result.TimedOut = reason != nil && *reason == ReasonTimeout
	result.AvgImageMs = snapshot.AvgImageMs

	switch {
	case snapshot.ImagesOnlyMs != nil:
		result.ImagesLoadedMs = snapshot.ImagesOnlyMs
	case !result.TimedOut && len(snapshot.Pending) == 0 && snapshot.Total > 0:
		// nothing carried usable timing, fall back to wall clock
		result.ImagesLoadedMs = &elapsed
	}

	// Page-level metrics are best-effort: a failure here must not discard
	// the image timing already collected.
	r.collectPageMetrics(ctx, session, &result, log)

	log.Info().
		Int("images_total", result.ImagesTotal).
		Int("images_failed", result.ImagesFailed).
		Int("images_pending", result.ImagesPending).
		Bool("timeout", result.TimedOut).
		Msg("trial finished")

	return result
}

// Warmup navigates the page once with cache disabled and discards the
// outcome. It primes DNS, connection reuse and CDN edge caches.
func (r *Runner) Warmup(ctx context.Context, pageURL string) error {
	session, err := r.engine.NewSession(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to open warmup session")
	}

	defer func() {
		if err := session.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close warmup session")
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()

	return errors.Wrap(session.Navigate(navCtx, pageURL), "warmup navigation failed")
}

// waitForImages polls the in-page probe until every qualifying image settled
// or the wait budget is exhausted. On timeout it returns the last snapshot it
// managed to collect.
func (r *Runner) waitForImages(ctx context.Context, session Session, log zerolog.Logger) (collector.Snapshot, *string) {
	deadline := time.Now().Add(r.cfg.MaxImageWait)
	lastProgress := time.Now()

	var snapshot collector.Snapshot

	for {
		var raw []collector.RawImage

		if err := session.Evaluate(ctx, collector.ProbeScript, &raw); err != nil {
			log.Debug().Err(err).Msg("image probe failed, keeping last snapshot")
		} else {
			snapshot = collector.Reduce(raw, r.filter)

			if snapshot.Total == 0 {
				return snapshot, strPtr(ReasonNoImages)
			}

			if len(snapshot.Pending) == 0 {
				if len(snapshot.Failed) > 0 {
					return snapshot, strPtr(ReasonImagesFailed)
				}

				return snapshot, nil
			}
		}

		if time.Now().After(deadline) {
			return snapshot, strPtr(ReasonTimeout)
		}

		if r.cfg.Verbose && time.Since(lastProgress) >= progressInterval {
			pending := snapshot.Pending
			if len(pending) > 3 {
				pending = pending[:3]
			}

			log.Info().
				Int("loaded", len(snapshot.Samples)).
				Int("failed", len(snapshot.Failed)).
				Int("pending", len(snapshot.Pending)).
				Strs("waiting_on", pending).
				Msg("still waiting for images")

			lastProgress = time.Now()
		}

		select {
		case <-ctx.Done():
			return snapshot, strPtr(ReasonTimeout)
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// scroll steps down the page to trigger lazy-loaded images, then returns to
// the top. Failures are ignored; a dead session will surface in the poll loop.
func (r *Runner) scroll(ctx context.Context, session Session) {
	var dims struct {
		Height   float64 `json:"height"`
		Viewport float64 `json:"viewport"`
	}

	script := `({height: document.body.scrollHeight, viewport: window.innerHeight})`
	if err := session.Evaluate(ctx, script, &dims); err != nil || dims.Viewport <= 0 {
		return
	}

	step := dims.Viewport * scrollStepFraction
	for position := step; position < dims.Height; position += step {
		_ = session.Evaluate(ctx, fmt.Sprintf("window.scrollTo(0, %.0f)", position), nil)
		time.Sleep(r.cfg.ScrollStepDelay)
	}

	_ = session.Evaluate(ctx, "window.scrollTo(0, 0)", nil)
}

const pageMetricsScript = `(() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return {
		ttfb: nav ? nav.responseStart : -1,
		userAgent: navigator.userAgent,
		viewport: window.innerWidth + 'x' + window.innerHeight
	};
})()`

// lcpScript observes buffered largest-contentful-paint entries and resolves
// with the latest one after a short settling delay, or -1 when unsupported.
const lcpScript = `new Promise((resolve) => {
	let lcp = -1;
	try {
		const observer = new PerformanceObserver((list) => {
			for (const entry of list.getEntries()) {
				lcp = Math.max(lcp, entry.startTime);
			}
		});
		observer.observe({type: 'largest-contentful-paint', buffered: true});
		setTimeout(() => { observer.disconnect(); resolve(lcp); }, 250);
	} catch (err) {
		resolve(-1);
	}
})`

func (r *Runner) collectPageMetrics(ctx context.Context, session Session, result *Trial, log zerolog.Logger) {
	var metrics struct {
		TTFB      float64 `json:"ttfb"`
		UserAgent string  `json:"userAgent"`
		Viewport  string  `json:"viewport"`
	}

	if err := session.Evaluate(ctx, pageMetricsScript, &metrics); err != nil {
		log.Debug().Err(err).Msg("failed to collect navigation metrics")
	} else {
		if metrics.TTFB >= 0 {
			result.TTFBMs = &metrics.TTFB
		}

		result.UserAgent = metrics.UserAgent
		result.Viewport = metrics.Viewport
	}

	var lcp float64
	if err := session.Evaluate(ctx, lcpScript, &lcp); err != nil {
		log.Debug().Err(err).Msg("failed to collect largest-contentful-paint")
	} else if lcp >= 0 {
		result.LCPMs = &lcp
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func strPtr(s string) *string {
	return &s
}
