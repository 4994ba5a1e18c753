// Package extractor runs the per-URL pipeline: fetch, locate, normalize and
// assemble, plus the optional authenticated side-channel and batch driver.
package extractor

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/assemble"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/locate"
	"github.com/jonathan/job-extractor/internal/normalize"
	"github.com/jonathan/job-extractor/internal/types"
)

// DefaultSideChannelWait bounds how long Extract waits for the side-channel
// once the page itself has been fetched and located.
const DefaultSideChannelWait = 30 * time.Second

// SideChannel looks up the apply-button label through a second, typically
// authenticated, session. An empty label means nothing was found.
type SideChannel interface {
	ApplicationLabel(ctx context.Context, url string) (string, error)
}

// Config holds optional extractor settings.
type Config struct {
	// SideChannel is consulted concurrently with the main pipeline for
	// LinkedIn URLs when set.
	SideChannel SideChannel
	// SideChannelWait defaults to DefaultSideChannelWait.
	SideChannelWait time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Extractor turns one URL into one record. Its fields are fixed at New, so
// concurrent batches may share one Extractor when the fetcher and
// side-channel are themselves safe for concurrent use.
type Extractor struct {
	fetcher  fetch.Fetcher
	locator  *locate.Locator
	side     SideChannel
	sideWait time.Duration
	now      func() time.Time
}

// New creates an Extractor.
func New(fetcher fetch.Fetcher, locator *locate.Locator, cfg Config) *Extractor {
	e := &Extractor{
		fetcher:  fetcher,
		locator:  locator,
		side:     cfg.SideChannel,
		sideWait: cfg.SideChannelWait,
		now:      cfg.Now,
	}
	if e.sideWait <= 0 {
		e.sideWait = DefaultSideChannelWait
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.locator == nil {
		e.locator = locate.New(locate.DefaultSelectors())
	}
	return e
}

type sideResult struct {
	label string
	err   error
}

// Extract produces the record for rawURL. It never returns an error: any
// failure is folded into the record.
func (e *Extractor) Extract(ctx context.Context, rawURL string) types.JobPostingRecord {
	retrievedAt := e.now()
	rawURL = strings.TrimSpace(rawURL)

	url, err := fetch.NormalizeURL(rawURL)
	if err != nil {
		log.Error().Err(err).Str("url", rawURL).Msg("invalid URL")
		return assemble.Failed(rawURL, retrievedAt, err)
	}
	platform := fetch.DetectPlatform(url)
	locale := fetch.LocaleFromURL(rawURL)
	logger := log.With().Str("url", url).Str("platform", string(platform)).Logger()

	// The session side-channel only knows LinkedIn apply buttons.
	var side chan sideResult
	sideCtx, cancelSide := context.WithCancel(ctx)
	defer cancelSide()
	if e.side != nil && platform == fetch.PlatformLinkedIn {
		side = make(chan sideResult, 1)
		go func() {
			label, err := e.side.ApplicationLabel(sideCtx, url)
			side <- sideResult{label: label, err: err}
		}()
	}

	doc, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		return assemble.Assemble(assemble.Input{URL: url, RetrievedAt: retrievedAt, FetchErr: err})
	}

	// Relative dates on a cached page count back from when it was fetched.
	dateRef := retrievedAt
	if doc.Cached && !doc.FetchedAt.IsZero() {
		dateRef = doc.FetchedAt
		logger.Debug().Time("fetched_at", doc.FetchedAt).Msg("resolving dates against cached page")
	}

	located := e.locator.Locate(doc, locale)
	app := located.Application
	if side != nil {
		label := e.awaitSide(ctx, side, logger)
		cancelSide()
		app = mergeSideChannel(app, label, locale)
	}

	return assemble.Assemble(assemble.Input{
		URL:               url,
		RetrievedAt:       retrievedAt,
		Normalized:        normalize.Fields(located, dateRef),
		Application:       app,
		DescriptionSource: located.Description.Strategy,
	})
}

// awaitSide waits up to sideWait for the side-channel, counted from the moment
// the main pipeline is ready for it.
func (e *Extractor) awaitSide(ctx context.Context, side <-chan sideResult, logger zerolog.Logger) string {
	timer := time.NewTimer(e.sideWait)
	defer timer.Stop()

	select {
	case res := <-side:
		if res.err != nil {
			logger.Warn().Err(res.err).Msg("side-channel failed")
			return ""
		}
		return res.label
	case <-timer.C:
		logger.Info().Dur("wait", e.sideWait).Msg("side-channel timed out, continuing without it")
		return ""
	case <-ctx.Done():
		return ""
	}
}

// mergeSideChannel overwrites the main-pipeline application only with a
// usable label: non-empty, not an error sentinel, and recognised.
func mergeSideChannel(app types.Application, label, locale string) types.Application {
	label = strings.TrimSpace(label)
	if label == "" || strings.HasPrefix(label, "Error") {
		return app
	}
	mode := locate.ClassifyApplyLabel(label)
	if mode == types.ModeUnknown {
		return app
	}
	return locate.AnnotateLocale(types.Application{
		Mode:       mode,
		Confidence: types.ConfidenceConfirmed,
		Label:      label,
	}, locale)
}
