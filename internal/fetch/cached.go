package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPageCacheTTL is how long a cached page is served before re-fetching.
const DefaultPageCacheTTL = 7 * 24 * time.Hour

// CachedPage is a stored document.
type CachedPage struct {
	URL        string
	HTML       string
	Text       string
	Strategy   string
	StatusCode int
	Rendered   bool
	FetchedAt  time.Time
}

// PageCache stores fetched documents keyed by URL.
type PageCache interface {
	// GetFreshPage returns the cached page when it is younger than maxAge, or nil.
	GetFreshPage(ctx context.Context, url string, maxAge time.Duration) (*CachedPage, error)
	UpsertPage(ctx context.Context, page *CachedPage) error
}

// CachedFetcher serves documents from a PageCache and falls through to the
// wrapped fetcher on a miss, storing what it fetched.
type CachedFetcher struct {
	next     Fetcher
	cache    PageCache
	cacheTTL time.Duration
}

// NewCachedFetcher creates a cached fetcher. A zero ttl uses DefaultPageCacheTTL.
func NewCachedFetcher(next Fetcher, cache PageCache, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	return &CachedFetcher{next: next, cache: cache, cacheTTL: ttl}
}

// Fetch implements Fetcher. Cache errors are logged and never fail the fetch.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*Document, error) {
	if f.cache != nil {
		cached, err := f.cache.GetFreshPage(ctx, urlStr, f.cacheTTL)
		if err != nil {
			log.Warn().Err(err).Str("url", urlStr).Msg("page cache lookup failed")
		} else if cached != nil {
			log.Debug().Str("url", urlStr).Time("fetched_at", cached.FetchedAt).Msg("page cache hit")
			return fromCache(cached), nil
		}
	}

	doc, err := f.next.Fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.UpsertPage(ctx, toCache(doc)); err != nil {
			log.Warn().Err(err).Str("url", urlStr).Msg("page cache store failed")
		}
	}
	return doc, nil
}

func fromCache(p *CachedPage) *Document {
	return &Document{
		URL:        p.URL,
		HTML:       p.HTML,
		Text:       p.Text,
		Strategy:   p.Strategy,
		StatusCode: p.StatusCode,
		Rendered:   p.Rendered,
		FetchedAt:  p.FetchedAt,
		Cached:     true,
	}
}

func toCache(d *Document) *CachedPage {
	return &CachedPage{
		URL:        d.URL,
		HTML:       d.HTML,
		Text:       d.Text,
		Strategy:   d.Strategy,
		StatusCode: d.StatusCode,
		Rendered:   d.Rendered,
		FetchedAt:  d.FetchedAt,
	}
}
