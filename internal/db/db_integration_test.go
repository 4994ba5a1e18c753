//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/types"
)

// getTestDB connects to TEST_DATABASE_URL and applies the schema.
func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	_, _ = db.pool.Exec(ctx, "DELETE FROM ignored_urls WHERE url LIKE '%test.example.com%'")
	_, _ = db.pool.Exec(ctx, "DELETE FROM fetched_pages WHERE url LIKE '%test.example.com%'")
	return db
}

func TestIntegration_IgnoredURLs(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	added, err := db.AddIgnoredURL(ctx, "HTTPS://Test.Example.com/jobs/1?utm_source=x#frag", "spam")
	require.NoError(t, err)
	assert.Equal(t, "https://test.example.com/jobs/1", added.URL)

	_, err = db.AddIgnoredURL(ctx, "https://test.example.com/jobs/1", "")
	assert.ErrorIs(t, err, ErrAlreadyIgnored)

	urls, err := db.IgnoredURLStrings(ctx)
	require.NoError(t, err)
	assert.Contains(t, urls, "https://test.example.com/jobs/1")

	removed, err := db.RemoveIgnoredURL(ctx, "test.example.com/jobs/1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.RemoveIgnoredURL(ctx, "test.example.com/jobs/1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIntegration_Batches(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, db.CreateBatch(ctx, id, 2))
	defer func() { _, _ = db.pool.Exec(ctx, "DELETE FROM processed_batches WHERE id = $1", id) }()

	running, err := db.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, BatchRunning, running.Status)
	assert.Empty(t, running.Records)

	records := []types.JobPostingRecord{
		{
			SourceURL:   "https://www.linkedin.com/jobs/view/1/",
			CompanyName: types.Found("Acme"),
			JobTitle:    types.Found("Engineer"),
			Application: types.Application{Mode: types.ModeEasyApply, Confidence: types.ConfidenceConfirmed},
			RetrievedAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			SourceURL:   "https://www.linkedin.com/jobs/view/2/",
			CompanyName: types.Failed("HTTP status 404"),
			Application: types.Application{Mode: types.ModeUnknown},
			RetrievedAt: time.Date(2024, 6, 10, 12, 0, 1, 0, time.UTC),
		},
	}
	require.NoError(t, db.CompleteBatch(ctx, id, BatchCompleted, records))

	got, err := db.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, got.Status)
	assert.Equal(t, 1, got.FailedCount)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "Acme", got.Records[0].CompanyName.Value)
	assert.True(t, got.Records[1].Failed())

	require.NoError(t, db.SaveBatchScores(ctx, id, map[string]int{"overall": 80}))
	got, err = db.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall": 80}`, string(got.Scores))

	list, err := db.ListBatches(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	missing, err := db.GetBatch(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, db.CompleteBatch(ctx, uuid.New(), BatchCompleted, nil))
}

func TestIntegration_PageCache(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	page := &fetch.CachedPage{
		URL:        "https://test.example.com/jobs/cached",
		HTML:       "<html><body>cached</body></html>",
		Strategy:   "http",
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}
	require.NoError(t, db.UpsertPage(ctx, page))

	got, err := db.GetFreshPage(ctx, page.URL, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, page.HTML, got.HTML)
	assert.Equal(t, "http", got.Strategy)

	page.FetchedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.UpsertPage(ctx, page))

	got, err = db.GetFreshPage(ctx, page.URL, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := db.PrunePages(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}
