package fetch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// DefaultRenderWait is how long the page is given to run its scripts after load.
const DefaultRenderWait = 3 * time.Second

// dismissSelectors close the sign-in modal LinkedIn overlays on guest job views.
const dismissSelectors = `button.modal__dismiss, button[data-tracking-control-name="public_jobs_contextual-sign-in-modal_modal_dismiss"], button[id*="accept"]`

// dismissScript clicks every match of selectors that is currently rendered
// and visible, in one round trip, and returns how many it clicked. Hidden
// matches are skipped rather than waited on.
func dismissScript(selectors string) string {
	return fmt.Sprintf(`(() => {
	let clicked = 0;
	for (const el of document.querySelectorAll(%s)) {
		if (el.getClientRects().length === 0 || getComputedStyle(el).visibility === "hidden") continue;
		el.click();
		clicked++;
	}
	return clicked;
})()`, strconv.Quote(selectors))
}

// BrowserOptions configures the headless browser strategy.
type BrowserOptions struct {
	Timeout    time.Duration
	RenderWait time.Duration
	UserAgent  string
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
}

// BrowserStrategy renders the page in headless Chrome and returns the
// post-JavaScript DOM. Requires Chrome/Chromium to be installed.
type BrowserStrategy struct {
	opts BrowserOptions
}

// NewBrowserStrategy creates the JavaScript-rendering strategy.
func NewBrowserStrategy(opts BrowserOptions) *BrowserStrategy {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = DefaultRenderWait
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &BrowserStrategy{opts: opts}
}

// Name implements Strategy.
func (s *BrowserStrategy) Name() string { return "browser" }

// AllocatorOptions returns the chromedp allocator flags shared by every
// headless session the extractor starts.
func AllocatorOptions(userAgent, execPath string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// Fetch implements Strategy.
func (s *BrowserStrategy) Fetch(ctx context.Context, urlStr string) (*Document, error) {
	if err := ValidateURL(urlStr); err != nil {
		return nil, err
	}
	log.Debug().Str("url", urlStr).Msg("starting headless browser")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(s.opts.UserAgent, s.opts.ExecPath)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, s.opts.Timeout)
	defer cancel()

	var html, location string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		chromedp.Sleep(s.opts.RenderWait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Modal may be absent, and a failed dismiss still leaves the page readable.
			var clicked int
			if err := chromedp.Evaluate(dismissScript(dismissSelectors), &clicked).Do(ctx); err != nil {
				log.Debug().Err(err).Str("url", urlStr).Msg("modal dismiss failed")
			} else if clicked > 0 {
				log.Debug().Str("url", urlStr).Int("clicked", clicked).Msg("dismissed modal")
			}
			return nil
		}),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "browser rendering failed", Cause: err}
	}
	if IsAuthWall(location) {
		return nil, &Error{URL: urlStr, Message: fmt.Sprintf("redirected to sign-in wall (%s)", location)}
	}

	log.Debug().Str("url", urlStr).Int("bytes", len(html)).Msg("rendered page")

	return &Document{
		URL:       urlStr,
		HTML:      html,
		Strategy:  s.Name(),
		FetchedAt: time.Now(),
		Rendered:  true,
	}, nil
}
