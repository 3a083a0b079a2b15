// Package experiment sequences a benchmark run: warmup passes, then the
// cartesian product of page, variant and repeat with the variant order
// shuffled independently per repeat so monotonic drift in network conditions
// cannot systematically favor one arm.
package experiment

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"

	"github.com/grobbelaar/cdntest/trial"
)

// PageSpec is one page measured under both variants.
type PageSpec struct {
	ID        string
	OriginURL string
	CDNURL    string
}

func (p PageSpec) url(variant trial.Variant) string {
	if variant == trial.VariantCDN {
		return p.CDNURL
	}

	return p.OriginURL
}

type Config struct {
	Pages        []PageSpec
	Repeats      int
	WarmupPasses int

	// TrialDelay is inserted between consecutive trials, except after the
	// very last trial of the run.
	TrialDelay time.Duration

	// Seed makes the variant shuffles reproducible when nonzero.
	Seed int64
}

// Runner is the per-trial collaborator; implemented by trial.Runner.
type Runner interface {
	Run(ctx context.Context, runID uuid.UUID, pageID string, variant trial.Variant, runIndex int, url string) trial.Trial
	Warmup(ctx context.Context, url string) error
}

// Orchestrator drives a whole run on a single control thread. Trials execute
// strictly one at a time; records are appended in execution order.
type Orchestrator struct {
	runner Runner
	cfg    Config
	rng    *rand.Rand
	log    zerolog.Logger
}

func New(runner Runner, cfg Config) (*Orchestrator, error) {
	if len(cfg.Pages) == 0 {
		return nil, errors.New("no pages configured")
	}

	if cfg.Repeats <= 0 {
		cfg.Repeats = 1
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Orchestrator{
		runner: runner,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log2.With().Str("component", "orchestrator").Caller().Logger(),
	}, nil
}

// Execute runs warmup and the measured phase and returns every trial record,
// one per (page, variant, repeat) triple, in execution order. Individual
// trial failures degrade to recorded failures and never abort the run.
func (o *Orchestrator) Execute(ctx context.Context) (uuid.UUID, []trial.Trial) {
	runID := uuid.New()
	log := o.log.With().Str("run_id", runID.String()).Logger()

	o.warmup(ctx, log)

	total := len(o.cfg.Pages) * o.cfg.Repeats * len(trial.Variants)
	records := make([]trial.Trial, 0, total)

	log.Info().
		Int("pages", len(o.cfg.Pages)).
		Int("repeats", o.cfg.Repeats).
		Int("trials", total).
		Msg("starting measured phase")

	done := 0

	for _, page := range o.cfg.Pages {
		for repeat := 0; repeat < o.cfg.Repeats; repeat++ {
			variants := append([]trial.Variant(nil), trial.Variants...)
			o.rng.Shuffle(len(variants), func(i, j int) {
				variants[i], variants[j] = variants[j], variants[i]
			})

			for _, variant := range variants {
				records = append(records, o.runner.Run(ctx, runID, page.ID, variant, repeat, page.url(variant)))

				done++
				if done < total && o.cfg.TrialDelay > 0 {
					time.Sleep(o.cfg.TrialDelay)
				}
			}
		}
	}

	return runID, records
}

// warmup navigates every (page, variant) combination once per pass with the
// cache disabled, ignoring errors. This primes DNS, TLS session reuse and
// CDN edge caches so the measured phase sees steady-state behavior.
func (o *Orchestrator) warmup(ctx context.Context, log zerolog.Logger) {
	if o.cfg.WarmupPasses <= 0 {
		return
	}

	log.Info().Int("passes", o.cfg.WarmupPasses).Msg("warming up")

	for pass := 0; pass < o.cfg.WarmupPasses; pass++ {
		for _, page := range o.cfg.Pages {
			for _, variant := range trial.Variants {
				if err := o.runner.Warmup(ctx, page.url(variant)); err != nil {
					log.Debug().
						Err(err).
						Str("page", page.ID).
						Str("variant", string(variant)).
						Msg("warmup navigation failed, continuing")
				}
			}
		}
	}
}
