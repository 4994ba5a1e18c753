package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/job-extractor/internal/fetch"
)

// GetFreshPage implements fetch.PageCache. It returns nil when the page is
// missing or older than maxAge.
func (db *DB) GetFreshPage(ctx context.Context, url string, maxAge time.Duration) (*fetch.CachedPage, error) {
	var p fetch.CachedPage
	err := db.pool.QueryRow(ctx,
		`SELECT url, html, text_content, strategy, http_status, rendered, fetched_at
		 FROM fetched_pages WHERE url = $1 AND fetched_at > $2`,
		url, time.Now().Add(-maxAge),
	).Scan(&p.URL, &p.HTML, &p.Text, &p.Strategy, &p.StatusCode, &p.Rendered, &p.FetchedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached page: %w", err)
	}
	return &p, nil
}

// UpsertPage implements fetch.PageCache.
func (db *DB) UpsertPage(ctx context.Context, p *fetch.CachedPage) error {
	fetchedAt := p.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO fetched_pages (url, html, text_content, strategy, http_status, rendered, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url) DO UPDATE SET
		   html = $2, text_content = $3, strategy = $4, http_status = $5, rendered = $6, fetched_at = $7`,
		p.URL, p.HTML, p.Text, p.Strategy, p.StatusCode, p.Rendered, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cached page: %w", err)
	}
	return nil
}

// PrunePages deletes cached pages older than maxAge and returns how many
// were removed.
func (db *DB) PrunePages(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM fetched_pages WHERE fetched_at <= $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to prune cached pages: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ fetch.PageCache = (*DB)(nil)
