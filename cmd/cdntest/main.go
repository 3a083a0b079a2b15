package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grobbelaar/cdntest/browser"
	"github.com/grobbelaar/cdntest/experiment"
	"github.com/grobbelaar/cdntest/geo"
	"github.com/grobbelaar/cdntest/netbench"
	"github.com/grobbelaar/cdntest/report"
	"github.com/grobbelaar/cdntest/store"
	"github.com/grobbelaar/cdntest/trial"
)

func setupLogger(cfg logConfig) error {
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrapf(err, "unknown log level %q", cfg.Level)
	}

	zerolog.SetGlobalLevel(level)

	return nil
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := setupLogger(cfg.Log); err != nil {
		return err
	}

	pages := make([]experiment.PageSpec, len(cfg.Pages))
	for i, page := range cfg.Pages {
		if page.ID == "" || page.OriginURL == "" || page.CDNURL == "" {
			return errors.Errorf("page %d is missing id, origin_url or cdn_url", i)
		}

		pages[i] = experiment.PageSpec{
			ID:        page.ID,
			OriginURL: page.OriginURL,
			CDNURL:    page.CDNURL,
		}
	}

	ctx := context.Background()

	if cfg.Geo.Enabled {
		location := geo.NewResolver(geo.Config{
			Token:    cfg.Geo.Token,
			ProxyURL: cfg.Geo.ProxyURL,
		}).Lookup(ctx)

		event := log.Info()
		if location.City != nil {
			event = event.Str("city", *location.City)
		}
		if location.IP != nil {
			event = event.Str("ip", *location.IP)
		}
		event.Msg("vantage point resolved")
	}

	log.Info().Msg("launching browser")

	chrome, err := browser.Launch(ctx, browser.Options{
		Headless:   cfg.Browser.Headless,
		ChromePath: cfg.Browser.ChromePath,
		ProxyURL:   cfg.Browser.ProxyURL,
		UserAgent:  cfg.Browser.UserAgent,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
	})
	if err != nil {
		return errors.Wrap(err, "cannot launch browser")
	}

	defer chrome.Close()

	runner := trial.NewRunner(chrome, trial.Config{
		NavigationTimeout: cfg.Run.NavigationTimeout,
		MaxImageWait:      cfg.Run.MaxImageWait,
		PollInterval:      cfg.Run.PollInterval,
		ScrollStepDelay:   cfg.Run.ScrollDelay,
		Verbose:           cfg.Run.Verbose,
		IgnoreHosts:       cfg.Filter.IgnoreHosts,
		AllowHosts:        cfg.Filter.AllowHosts,
	})

	orchestrator, err := experiment.New(runner, experiment.Config{
		Pages:        pages,
		Repeats:      cfg.Run.Repeats,
		WarmupPasses: cfg.Run.WarmupPasses,
		TrialDelay:   cfg.Run.TrialDelay,
	})
	if err != nil {
		return errors.Wrap(err, "cannot create orchestrator")
	}

	runID, records := orchestrator.Execute(ctx)
	summary := report.ComputeSummary(records)

	reportPath, err := store.WriteReportFile(cfg.Output.Dir, cfg.Output.File, records, summary)
	if err != nil {
		return errors.Wrap(err, "cannot write report file")
	}

	log.Info().
		Str("run_id", runID.String()).
		Int("trials", len(records)).
		Str("report", reportPath).
		Msg("run complete")

	report.RenderTable(os.Stdout, summary)

	// The local CSV stays authoritative: sink failures below are logged and
	// never fail the run.
	if cfg.Database.ConnectionString != "" {
		if db, err := store.OpenTrialDB(cfg.Database.ConnectionString); err != nil {
			log.Error().Err(err).Msg("cannot open database connection")
		} else if err := db.SaveTrials(ctx, records); err != nil {
			log.Error().Err(err).Msg("cannot save trials to database")
		}
	}

	if cfg.S3.Enabled {
		uploader, err := store.NewS3Uploader(ctx, store.S3Config{
			Bucket:       cfg.S3.Bucket,
			KeyPrefix:    cfg.S3.KeyPrefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			RetryCount:   cfg.S3.RetryCount,
			RetryWait:    cfg.S3.RetryWait,
		})
		if err != nil {
			log.Error().Err(err).Msg("cannot create s3 uploader")
		} else if _, err := uploader.UploadReport(ctx, reportPath); err != nil {
			log.Error().Err(err).Msg("cannot upload report to s3")
		}
	}

	return nil
}

func runNet(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := setupLogger(cfg.Log); err != nil {
		return err
	}

	protocol, err := netbench.ParseProtocol(cfg.Net.Protocol)
	if err != nil {
		return err
	}

	bench, err := netbench.New(netbench.Config{
		OriginURL: cfg.Net.OriginURL,
		CDNURL:    cfg.Net.CDNURL,
		Protocol:  protocol,
		Rounds:    cfg.Net.Rounds,
		Interval:  cfg.Net.Interval,
		Timeout:   cfg.Net.Timeout,
		ProxyURL:  cfg.Net.ProxyURL,
		UserAgent: cfg.Browser.UserAgent,
	})
	if err != nil {
		return errors.Wrap(err, "cannot create network benchmark")
	}

	results := bench.Run(context.Background())
	netbench.RenderTable(os.Stdout, netbench.Summarize(results))

	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var configPath string

	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "path to the config file",
		Value:       "./config.toml",
		Destination: &configPath,
	}

	app := &cli.App{
		Name:  "cdntest",
		Usage: "compare page image load times between an origin and a CDN",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the browser-based benchmark over the configured pages",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return run(configPath)
				},
			},
			{
				Name:  "net",
				Usage: "run the raw network TTFB benchmark against a single pair of urls",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return runNet(configPath)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("cdntest exited with error")
	}
}
