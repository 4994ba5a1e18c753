package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/types"
)

// maxRuns bounds how many batches are kept in memory. Finished runs are
// evicted oldest first; stored batches reload from the database on demand.
const maxRuns = 50

// Phases reported in Progress.
const (
	PhaseExtract = "extract"
	PhaseScore   = "score"
)

// Progress is the live state of a batch, streamed to the browser.
type Progress struct {
	BatchID string `json:"batch_id"`
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Done    bool   `json:"done"`
}

// run is one batch known to this process: extracting, scoring, finished, or
// reloaded from the store.
type run struct {
	id        uuid.UUID
	urlCount  int
	createdAt time.Time
	batch     *extractor.BatchContext
	cancel    context.CancelFunc

	mu         sync.Mutex
	status     string
	extracting bool
	scoring    bool
	progress   Progress
	records    []types.JobPostingRecord
	scores     []scoring.Result
	changed    chan struct{}
}

func newRun(urlCount int) *run {
	return &run{
		urlCount:   urlCount,
		createdAt:  time.Now(),
		status:     db.BatchRunning,
		extracting: true,
		changed:    make(chan struct{}),
		progress:   Progress{Phase: PhaseExtract, Total: urlCount, Status: db.BatchRunning},
	}
}

// runFromStored rebuilds a finished run from the database.
func runFromStored(pb *db.ProcessedBatch) *run {
	r := &run{
		id:        pb.ID,
		urlCount:  pb.URLCount,
		createdAt: pb.CreatedAt,
		status:    pb.Status,
		records:   pb.Records,
		changed:   make(chan struct{}),
	}
	if r.status == db.BatchRunning {
		// interrupted by a restart; what was saved is all there is
		r.status = db.BatchCancelled
	}
	if len(pb.Scores) > 0 {
		if err := json.Unmarshal(pb.Scores, &r.scores); err != nil {
			log.Warn().Err(err).Str("batch_id", pb.ID.String()).Msg("ignoring unreadable stored scores")
			r.scores = nil
		}
	}
	r.progress = Progress{
		BatchID: pb.ID.String(),
		Phase:   PhaseExtract,
		Current: len(pb.Records),
		Total:   pb.URLCount,
		Status:  r.status,
		Done:    true,
	}
	return r
}

// update applies fn under the lock and wakes every watcher.
func (r *run) update(fn func(r *run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
	r.progress.BatchID = r.id.String()
	r.progress.Status = r.status
	r.progress.Done = !r.extracting && !r.scoring
	close(r.changed)
	r.changed = make(chan struct{})
}

// snapshot returns the current progress and a channel closed on the next
// change.
func (r *run) snapshot() (Progress, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress, r.changed
}

func (r *run) reportExtract(current, total int, message string) {
	r.update(func(r *run) {
		r.progress.Phase = PhaseExtract
		r.progress.Current = current
		r.progress.Total = total
		r.progress.Message = message
	})
}

func (r *run) reportScore(current, total int, message string) {
	r.update(func(r *run) {
		r.progress.Phase = PhaseScore
		r.progress.Current = current
		r.progress.Total = total
		r.progress.Message = message
	})
}

func (r *run) finishExtraction(records []types.JobPostingRecord, status string) {
	r.update(func(r *run) {
		r.records = records
		r.status = status
		r.extracting = false
		r.progress.Message = "Batch " + status
	})
}

// startScoring flips the run into scoring unless it is busy. It returns the
// records to score.
func (r *run) startScoring() ([]types.JobPostingRecord, error) {
	var records []types.JobPostingRecord
	var err error
	r.update(func(r *run) {
		switch {
		case r.extracting:
			err = &ErrBatchBusy{BatchID: r.id, State: "still extracting"}
		case r.scoring:
			err = &ErrBatchBusy{BatchID: r.id, State: "already scoring"}
		default:
			r.scoring = true
			r.scores = nil
			r.progress.Phase = PhaseScore
			r.progress.Current = 0
			r.progress.Total = len(r.records)
			r.progress.Message = "Fit scoring queued"
			records = append([]types.JobPostingRecord(nil), r.records...)
		}
	})
	return records, err
}

func (r *run) finishScoring(results []scoring.Result) {
	r.update(func(r *run) {
		r.scores = results
		r.scoring = false
		r.progress.Message = "Fit scoring finished"
	})
}

// Records returns the records so far, including partial ones mid-batch.
func (r *run) Records() []types.JobPostingRecord {
	r.mu.Lock()
	extracting := r.extracting
	records := r.records
	r.mu.Unlock()
	if extracting && r.batch != nil {
		return r.batch.Records()
	}
	return append([]types.JobPostingRecord(nil), records...)
}

// Scores returns the latest scoring results, if any.
func (r *run) Scores() []scoring.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scoring.Result(nil), r.scores...)
}

func (r *run) state() (status string, extracting, scoring bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.extracting, r.scoring
}

func (r *run) summary() db.BatchSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed := 0
	for _, rec := range r.records {
		if rec.Failed() {
			failed++
		}
	}
	return db.BatchSummary{
		ID:          r.id,
		Status:      r.status,
		URLCount:    r.urlCount,
		FailedCount: failed,
		CreatedAt:   r.createdAt,
	}
}

// registry holds the in-memory runs, newest last.
type registry struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]*run
	order []uuid.UUID
}

func newRegistry() *registry {
	return &registry{runs: make(map[uuid.UUID]*run)}
}

func (g *registry) add(r *run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.runs[r.id]; ok {
		return
	}
	g.runs[r.id] = r
	g.order = append(g.order, r.id)
	g.evict()
}

// evict drops the oldest finished runs beyond maxRuns. Caller holds g.mu.
func (g *registry) evict() {
	for i := 0; len(g.runs) > maxRuns && i < len(g.order); {
		id := g.order[i]
		if _, extracting, scoring := g.runs[id].state(); extracting || scoring {
			i++
			continue
		}
		delete(g.runs, id)
		g.order = append(g.order[:i], g.order[i+1:]...)
	}
}

func (g *registry) get(id uuid.UUID) (*run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	return r, ok
}

// list returns runs newest first.
func (g *registry) list() []*run {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*run, 0, len(g.order))
	for i := len(g.order) - 1; i >= 0; i-- {
		out = append(out, g.runs[g.order[i]])
	}
	return out
}
