package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/types"
)

// Batch defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// Result is the outcome of scoring one record.
type Result struct {
	Job   Job       `json:"job"`
	Score *FitScore `json:"score,omitempty"`
	Error string    `json:"error,omitempty"`
}

// BatchOptions tunes ScoreBatch.
type BatchOptions struct {
	// MaxAttempts per job, including the first.
	MaxAttempts int
	// BaseDelay is the pause between jobs and the first retry backoff, which
	// doubles on every further retry. Negative disables waiting.
	BaseDelay time.Duration
	Progress  func(current, total int, message string)
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	} else if o.BaseDelay == 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ScoreBatch scores every record in order and returns one Result per record.
// Error records are skipped without calling the scorer. A cancelled ctx
// stops further calls; the remaining results carry the cancellation error.
func ScoreBatch(ctx context.Context, scorer Scorer, records []types.JobPostingRecord, opts BatchOptions) []Result {
	opts = opts.withDefaults()
	total := len(records)
	report := func(current int, msg string) {
		if opts.Progress != nil {
			opts.Progress(current, total, msg)
		}
	}

	results := make([]Result, total)
	report(0, "Starting fit scoring...")

	called := false
	for i, rec := range records {
		job := JobFromRecord(rec)
		results[i].Job = job

		if rec.Failed() {
			results[i].Error = "skipped: " + rec.CompanyName.String()
			report(i+1, fmt.Sprintf("Skipped %d/%d: %s", i+1, total, job.URL))
			continue
		}
		if called {
			if err := sleep(ctx, opts.BaseDelay); err != nil {
				markCancelled(results[i:], records[i:], err)
				break
			}
		}
		called = true

		report(i, fmt.Sprintf("Scoring %d/%d: %s", i+1, total, job.Title))
		score, err := scoreWithRetry(ctx, scorer, job, opts, func(attempt int) {
			report(i, fmt.Sprintf("Job %d/%d: attempt %d/%d...", i+1, total, attempt, opts.MaxAttempts))
		})
		if err != nil {
			results[i].Error = err.Error()
			log.Error().Err(err).Str("url", job.URL).Msg("fit scoring failed")
		} else {
			results[i].Score = score
			log.Info().Str("url", job.URL).Int("overall", score.Overall).Msg("fit scored")
		}
		report(i+1, fmt.Sprintf("Job %d/%d done: %s", i+1, total, job.Title))
	}

	report(total, "Fit scoring finished")
	return results
}

func markCancelled(results []Result, records []types.JobPostingRecord, err error) {
	for j := range results {
		results[j].Job = JobFromRecord(records[j])
		results[j].Error = err.Error()
	}
}

func scoreWithRetry(ctx context.Context, scorer Scorer, job Job, opts BatchOptions, onRetry func(attempt int)) (*FitScore, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := opts.BaseDelay << (attempt - 2)
			log.Info().Str("url", job.URL).Int("attempt", attempt).Dur("wait", wait).Msg("retrying fit score")
			onRetry(attempt)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		score, err := scorer.Score(ctx, job)
		if err == nil {
			return score, nil
		}
		if errors.Is(err, ErrNoDescription) {
			return nil, err
		}
		lastErr = err
		log.Warn().Err(err).Str("url", job.URL).Int("attempt", attempt).Msg("fit score attempt failed")
	}
	return nil, fmt.Errorf("after %d attempts: %w", opts.MaxAttempts, lastErr)
}
