package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/assemble"
	"github.com/jonathan/job-extractor/internal/types"
)

// ErrBatchCancelled marks records for URLs that were never processed because
// the batch was cancelled.
var ErrBatchCancelled = errors.New("batch cancelled")

// ProgressFunc receives batch progress. current counts finished URLs.
type ProgressFunc func(current, total int, message string)

// BatchContext carries the state of one batch run. Records are readable while
// the batch is still running.
type BatchContext struct {
	ID        uuid.UUID
	URLs      []string
	CreatedAt time.Time

	progress ProgressFunc

	mu       sync.Mutex
	records  []types.JobPostingRecord
	finished bool
}

// NewBatch creates a batch over urls. progress may be nil.
func NewBatch(urls []string, progress ProgressFunc) *BatchContext {
	return &BatchContext{
		ID:        uuid.New(),
		URLs:      append([]string(nil), urls...),
		CreatedAt: time.Now(),
		progress:  progress,
		records:   make([]types.JobPostingRecord, 0, len(urls)),
	}
}

// Records returns a copy of the records produced so far, in input order.
func (b *BatchContext) Records() []types.JobPostingRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.JobPostingRecord(nil), b.records...)
}

// Finished reports whether every URL has a record.
func (b *BatchContext) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

func (b *BatchContext) add(rec types.JobPostingRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	return len(b.records)
}

func (b *BatchContext) finish() {
	b.mu.Lock()
	b.finished = true
	b.mu.Unlock()
}

func (b *BatchContext) report(current int, message string) {
	if b.progress != nil {
		b.progress(current, len(b.URLs), message)
	}
}

// RunBatch extracts every URL in order and returns exactly one record per
// URL. Cancellation is honoured only between records: the URL in flight
// finishes, and each remaining URL gets a "batch cancelled" error record.
func (e *Extractor) RunBatch(ctx context.Context, b *BatchContext) []types.JobPostingRecord {
	total := len(b.URLs)
	logger := log.With().Str("batch_id", b.ID.String()).Logger()
	logger.Info().Int("total", total).Msg("batch started")
	b.report(0, fmt.Sprintf("Starting batch of %d URLs", total))

	for i, url := range b.URLs {
		if ctx.Err() != nil {
			logger.Warn().Int("remaining", total-i).Msg("batch cancelled")
			for _, rest := range b.URLs[i:] {
				n := b.add(assemble.Failed(rest, e.now(), ErrBatchCancelled))
				b.report(n, fmt.Sprintf("Skipped %s", rest))
			}
			break
		}

		rec := e.Extract(context.WithoutCancel(ctx), url)
		n := b.add(rec)

		msg := fmt.Sprintf("Processed %d/%d: %s", n, total, rec.SourceURL)
		if rec.Failed() {
			msg = fmt.Sprintf("Failed %d/%d: %s", n, total, rec.SourceURL)
		}
		logger.Info().Int("attempt", n).Str("url", rec.SourceURL).Bool("failed", rec.Failed()).Msg("record assembled")
		b.report(n, msg)
	}

	b.finish()
	logger.Info().Msg("batch finished")
	return b.Records()
}
