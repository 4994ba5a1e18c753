package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/job-extractor/internal/fetch"
)

const (
	loginURL      = "https://www.linkedin.com/login"
	loggedInProbe = `document.querySelector("#global-nav") !== null`
	pollInterval  = 500 * time.Millisecond
)

// ChromeDriver keeps one headless Chrome tab alive for the whole session so
// cookies survive between lookups.
type ChromeDriver struct {
	opts fetch.BrowserOptions

	// mu serializes tab use.
	mu          sync.Mutex
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeDriver starts nothing until the first call.
func NewChromeDriver(opts fetch.BrowserOptions) *ChromeDriver {
	if opts.Timeout <= 0 {
		opts.Timeout = fetch.DefaultTimeout
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = fetch.DefaultRenderWait
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetch.DefaultUserAgent
	}
	return &ChromeDriver{opts: opts}
}

// tab starts the browser on first use. The empty Run binds the tab to the
// long-lived context so per-call timeouts never close it.
func (d *ChromeDriver) tab() (context.Context, error) {
	if d.browserCtx == nil {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(),
			fetch.AllocatorOptions(d.opts.UserAgent, d.opts.ExecPath)...)
		browserCtx, cancelTab := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			cancelTab()
			cancelAlloc()
			return nil, err
		}
		d.browserCtx, d.cancelTab, d.cancelAlloc = browserCtx, cancelTab, cancelAlloc
	}
	return d.browserCtx, nil
}

// run executes actions on the tab, bounded by the driver timeout and ctx.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	tab, err := d.tab()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(tab, d.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Login implements Driver.
func (d *ChromeDriver) Login(ctx context.Context, creds Credentials) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible("#username", chromedp.ByQuery),
		chromedp.SendKeys("#username", creds.Username, chromedp.ByQuery),
		chromedp.SendKeys("#password", creds.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.ActionFunc(waitLoggedIn))
}

func waitLoggedIn(ctx context.Context) error {
	for {
		var location string
		var ok bool
		if err := chromedp.Location(&location).Do(ctx); err != nil {
			return err
		}
		if strings.Contains(location, "/checkpoint/") {
			return ErrCheckpoint
		}
		if err := chromedp.Evaluate(loggedInProbe, &ok).Do(ctx); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Page implements Driver.
func (d *ChromeDriver) Page(ctx context.Context, url string) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var html, location string
	err := d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.opts.RenderWait),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, location, err
}

// Close implements Driver.
func (d *ChromeDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelTab != nil {
		d.cancelTab()
		d.cancelAlloc()
		d.browserCtx = nil
	}
}
