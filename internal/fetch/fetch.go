// Package fetch retrieves job-posting documents through an ordered chain of
// transport strategies: a JavaScript-rendering browser, a plain HTTP GET with
// browser-like headers, and a text-extraction fetch.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default per-strategy request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent mimics a desktop Chrome browser. The target site varies its
// markup for, and blocks, requests that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultAcceptLanguage is sent with every request.
const DefaultAcceptLanguage = "en-US,en;q=0.9"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Fetcher retrieves the document for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Strategy is a single transport attempt in the fetch chain.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Document is the fetched page. HTML is always set; Text is set when the
// producing strategy extracted readable text.
type Document struct {
	URL        string
	HTML       string
	Text       string
	Strategy   string
	StatusCode int
	FetchedAt  time.Time

	// Rendered is true when HTML is the post-JavaScript DOM of a browser session.
	Rendered bool
	// Cached is true when the document was served from a PageCache, in which
	// case FetchedAt is the time of the original fetch.
	Cached bool

	once   sync.Once
	parsed *goquery.Document
}

// Static parses HTML once and returns the query document. It returns nil when
// the markup cannot be parsed.
func (d *Document) Static() *goquery.Document {
	d.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
		if err == nil {
			d.parsed = doc
		}
	})
	return d.parsed
}

// DOM returns the rendered DOM query capability, or nil when the document did
// not come from a JavaScript-capable session.
func (d *Document) DOM() *goquery.Document {
	if !d.Rendered {
		return nil
	}
	return d.Static()
}

// Error represents an error from a single fetch strategy.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the HTTP-based strategies.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Headers        map[string]string
	Client         *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.UserAgent == "" {
		out.UserAgent = DefaultUserAgent
	}
	if out.AcceptLanguage == "" {
		out.AcceptLanguage = DefaultAcceptLanguage
	}
	return &out
}

// ValidateURL checks that urlStr is an absolute http(s) URL.
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	if parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &Error{URL: urlStr, Message: "invalid URL"}
	}
	return nil
}

// HTTPStrategy is a plain GET with browser-like headers.
type HTTPStrategy struct {
	opts *Options
}

// NewHTTPStrategy creates the plain HTTP strategy.
func NewHTTPStrategy(opts *Options) *HTTPStrategy {
	return &HTTPStrategy{opts: opts.withDefaults()}
}

// Name implements Strategy.
func (s *HTTPStrategy) Name() string { return "http" }

// Fetch implements Strategy.
func (s *HTTPStrategy) Fetch(ctx context.Context, urlStr string) (*Document, error) {
	body, status, err := get(ctx, urlStr, s.opts)
	if err != nil {
		return nil, err
	}
	return &Document{
		URL:        urlStr,
		HTML:       body,
		Strategy:   s.Name(),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

// get performs the GET shared by the HTTP and text strategies. Any non-2xx
// status or a redirect onto the sign-in wall is an error.
func get(ctx context.Context, urlStr string, opts *Options) (string, int, error) {
	if err := ValidateURL(urlStr); err != nil {
		return "", 0, err
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", 0, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept-Language", opts.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.Request != nil && IsAuthWall(resp.Request.URL.String()) {
		return "", resp.StatusCode, &Error{URL: urlStr, Message: "redirected to sign-in wall"}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	return string(bodyBytes), resp.StatusCode, nil
}

// IsAuthWall reports whether a URL is LinkedIn's sign-in interstitial.
func IsAuthWall(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, "/authwall") ||
		strings.Contains(lower, "/checkpoint/") ||
		strings.Contains(lower, "/login")
}
