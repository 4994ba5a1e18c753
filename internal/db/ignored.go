package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-extractor/internal/fetch"
)

// ErrAlreadyIgnored is returned when adding a URL that is already ignored.
var ErrAlreadyIgnored = errors.New("url already ignored")

// IgnoredURL is a URL excluded from every batch.
type IgnoredURL struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddIgnoredURL stores the normalized form of rawURL.
func (db *DB) AddIgnoredURL(ctx context.Context, rawURL, reason string) (*IgnoredURL, error) {
	url, err := fetch.NormalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	var ig IgnoredURL
	err = db.pool.QueryRow(ctx,
		`INSERT INTO ignored_urls (url, reason) VALUES ($1, $2)
		 RETURNING id, url, reason, created_at`,
		url, reason,
	).Scan(&ig.ID, &ig.URL, &ig.Reason, &ig.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyIgnored
		}
		return nil, fmt.Errorf("failed to add ignored url: %w", err)
	}
	return &ig, nil
}

// ListIgnoredURLs returns every ignored URL, newest first.
func (db *DB) ListIgnoredURLs(ctx context.Context) ([]IgnoredURL, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, url, reason, created_at FROM ignored_urls ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ignored urls: %w", err)
	}
	defer rows.Close()

	var out []IgnoredURL
	for rows.Next() {
		var ig IgnoredURL
		if err := rows.Scan(&ig.ID, &ig.URL, &ig.Reason, &ig.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ignored url: %w", err)
		}
		out = append(out, ig)
	}
	return out, rows.Err()
}

// IgnoredURLStrings returns just the URLs, for merging into an exclude list.
func (db *DB) IgnoredURLStrings(ctx context.Context) ([]string, error) {
	list, err := db.ListIgnoredURLs(ctx)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(list))
	for i, ig := range list {
		urls[i] = ig.URL
	}
	return urls, nil
}

// RemoveIgnoredURL deletes rawURL from the list. It reports whether a row
// was removed.
func (db *DB) RemoveIgnoredURL(ctx context.Context, rawURL string) (bool, error) {
	url, err := fetch.NormalizeURL(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	result, err := db.pool.Exec(ctx, `DELETE FROM ignored_urls WHERE url = $1`, url)
	if err != nil {
		return false, fmt.Errorf("failed to remove ignored url: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
