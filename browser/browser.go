// Package browser implements the trial.Engine capability on top of a single
// headless Chrome process driven over the DevTools protocol. Every session is
// backed by its own browser context, so trials share the process but never
// cookies, cache or storage.
package browser

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"

	"github.com/grobbelaar/cdntest/trial"
)

type Options struct {
	Headless   bool
	ChromePath string
	ProxyURL   string
	UserAgent  string
	Width      int
	Height     int
}

// Browser owns the shared Chrome process. It is launched once per run and
// closed after the last trial.
type Browser struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	log           zerolog.Logger
}

func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Width <= 0 {
		opts.Width = 1366
	}

	if opts.Height <= 0 {
		opts.Height = 900
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))

	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// start the process now so launch failures surface here, not mid-run
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()

		return nil, errors.Wrap(err, "failed to launch browser")
	}

	return &Browser{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		log:           log2.With().Str("component", "browser").Caller().Logger(),
	}, nil
}

// NewSession creates an isolated browser context with a blank tab and the
// network cache force-disabled.
func (b *Browser) NewSession(ctx context.Context) (trial.Session, error) {
	var contextID cdp.BrowserContextID

	err := chromedp.Run(b.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, err := target.CreateBrowserContext().Do(ctx)
		if err != nil {
			return err
		}

		contextID = id

		return nil
	}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create isolated browser context")
	}

	var targetID target.ID

	err = chromedp.Run(b.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, err := target.CreateTarget("about:blank").WithBrowserContextID(contextID).Do(ctx)
		if err != nil {
			return err
		}

		targetID = id

		return nil
	}))
	if err != nil {
		b.disposeContext(contextID)

		return nil, errors.Wrap(err, "failed to create target")
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(targetID))

	if err := chromedp.Run(tabCtx, network.Enable(), network.SetCacheDisabled(true)); err != nil {
		tabCancel()
		b.disposeContext(contextID)

		return nil, errors.Wrap(err, "failed to disable network cache")
	}

	return &session{
		ctx:       tabCtx,
		cancel:    tabCancel,
		contextID: contextID,
		browser:   b,
	}, nil
}

func (b *Browser) disposeContext(contextID cdp.BrowserContextID) {
	err := chromedp.Run(b.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.DisposeBrowserContext(contextID).Do(ctx)
	}))
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to dispose browser context")
	}
}

func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
}

type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	contextID cdp.BrowserContextID
	browser   *Browser
}

// Navigate starts loading url and returns once DOMContentLoaded fires. The
// full load event is deliberately not awaited.
func (s *session) Navigate(ctx context.Context, urlstr string) error {
	ready := make(chan struct{}, 1)

	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()

	chromedp.ListenTarget(listenCtx, func(event interface{}) {
		if _, ok := event.(*page.EventDomContentEventFired); ok {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})

	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(urlstr).Do(ctx)
		if err != nil {
			return err
		}

		if errorText != "" {
			return errors.Errorf("navigation failed: %s", errorText)
		}

		return nil
	}))
	if err != nil {
		return errors.Wrap(err, "failed to navigate")
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for DOMContentLoaded")
	case <-s.ctx.Done():
		return errors.Wrap(s.ctx.Err(), "session closed during navigation")
	}
}

// Evaluate runs script in the page, awaiting promises, and unmarshals the
// serialized result into out.
func (s *session) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "evaluate aborted")
	}

	action := chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	})

	return errors.Wrap(chromedp.Run(s.ctx, action), "failed to evaluate script")
}

// Close tears down the tab and disposes the backing browser context.
func (s *session) Close() error {
	s.cancel()
	s.browser.disposeContext(s.contextID)

	return nil
}
