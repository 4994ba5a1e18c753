package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/export"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/types"
)

const (
	// maxBatchURLs caps one submission.
	maxBatchURLs = 500
	// pastBatches is how many stored batches the index lists.
	pastBatches = 20
	// storeTimeout bounds persistence calls made from background batches.
	storeTimeout = 10 * time.Second
)

// batchForm is the submitted form. Both fields hold one URL per line.
type batchForm struct {
	URLs    string `validate:"required,max=500000"`
	Exclude string `validate:"max=500000"`
}

type indexPage struct {
	Error        string
	URLs         string
	Exclude      string
	Batches      []db.BatchSummary
	HasStore     bool
	MaxBatchURLs int
}

type batchItem struct {
	Row   export.Row
	Score *scoring.Result
}

type batchPage struct {
	ID         string
	Status     string
	Progress   Progress
	Extracting bool
	Scoring    bool
	CanScore   bool
	Items      []batchItem
}

type batchJSON struct {
	ID       string                   `json:"id"`
	Status   string                   `json:"status"`
	Progress Progress                 `json:"progress"`
	Records  []types.JobPostingRecord `json:"records"`
	Scores   []scoring.Result         `json:"scores,omitempty"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// fail reports err as JSON or, for browsers, as plain text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if wantsJSON(r) {
		s.errorResponse(w, status, err.Error())
		return
	}
	http.Error(w, err.Error(), status)
}

// handleIndex renders the submission form and the batch history.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.indexData(r.Context(), batchForm{}, ""))
}

func (s *Server) indexData(ctx context.Context, form batchForm, errMsg string) indexPage {
	page := indexPage{
		Error:        errMsg,
		URLs:         form.URLs,
		Exclude:      form.Exclude,
		HasStore:     s.store != nil,
		MaxBatchURLs: maxBatchURLs,
	}

	seen := make(map[uuid.UUID]bool)
	for _, run := range s.runs.list() {
		page.Batches = append(page.Batches, run.summary())
		seen[run.id] = true
	}
	if s.store != nil {
		stored, err := s.store.ListBatches(ctx, pastBatches)
		if err != nil {
			log.Error().Err(err).Msg("failed to list stored batches")
		}
		for _, b := range stored {
			if !seen[b.ID] {
				page.Batches = append(page.Batches, b)
			}
		}
	}
	return page
}

// handleCreateBatch validates the form, merges the exclusion lists, and
// starts the batch in the background.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	form := batchForm{
		URLs:    r.FormValue("urls"),
		Exclude: r.FormValue("exclude"),
	}

	urls, err := s.parseBatchForm(r.Context(), form)
	if err != nil {
		if wantsJSON(r) || HTTPStatus(err) != http.StatusBadRequest {
			s.fail(w, r, err)
			return
		}
		s.render(w, http.StatusBadRequest, "index.html", s.indexData(r.Context(), form, err.Error()))
		return
	}

	run := s.startBatch(urls)
	if wantsJSON(r) {
		s.jsonResponse(w, http.StatusAccepted, map[string]any{
			"batch_id": run.id.String(),
			"urls":     len(urls),
		})
		return
	}
	http.Redirect(w, r, "/batches/"+run.id.String(), http.StatusSeeOther)
}

func (s *Server) parseBatchForm(ctx context.Context, form batchForm) ([]string, error) {
	if err := s.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			if verrs[0].Tag() == "required" {
				return nil, &ErrValidation{Field: field, Message: "at least one URL is required"}
			}
			return nil, &ErrValidation{Field: field, Message: "input is too large"}
		}
		return nil, err
	}

	exclude := strings.Split(form.Exclude, "\n")
	if s.store != nil {
		ignored, err := s.store.IgnoredURLStrings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignored URLs: %w", err)
		}
		exclude = append(exclude, ignored...)
	}

	urls := extractor.ParseURLList(form.URLs, exclude)
	switch {
	case len(urls) == 0:
		return nil, &ErrValidation{Field: "urls", Message: "no URLs left after removing blanks, duplicates and excluded URLs"}
	case len(urls) > maxBatchURLs:
		return nil, &ErrValidation{Field: "urls", Message: fmt.Sprintf("at most %d URLs per batch", maxBatchURLs)}
	}
	return urls, nil
}

// startBatch registers a run and extracts it in the background. Progress
// flows into the run; the final records go to the store when one is set.
func (s *Server) startBatch(urls []string) *run {
	r := newRun(len(urls))
	b := extractor.NewBatch(urls, r.reportExtract)
	r.id = b.ID
	r.batch = b
	r.progress.BatchID = b.ID.String()

	ctx, cancel := context.WithCancel(s.baseCtx)
	r.cancel = cancel
	s.runs.add(r)

	if s.store != nil {
		storeCtx, done := context.WithTimeout(context.Background(), storeTimeout)
		if err := s.store.CreateBatch(storeCtx, b.ID, len(urls)); err != nil {
			log.Error().Err(err).Str("batch_id", b.ID.String()).Msg("failed to record batch start")
		}
		done()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		records := s.runner.RunBatch(ctx, b)
		status := db.BatchCompleted
		if ctx.Err() != nil {
			status = db.BatchCancelled
		}
		r.finishExtraction(records, status)

		if s.store != nil {
			storeCtx, done := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
			defer done()
			if err := s.store.CompleteBatch(storeCtx, b.ID, status, records); err != nil {
				log.Error().Err(err).Str("batch_id", b.ID.String()).Msg("failed to store batch")
			}
		}
	}()
	return r
}

// lookup finds a batch in memory, then in the store.
func (s *Server) lookup(ctx context.Context, rawID string) (*run, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &ErrBatchNotFound{BatchID: rawID}
	}
	if r, ok := s.runs.get(id); ok {
		return r, nil
	}
	if s.store == nil {
		return nil, &ErrBatchNotFound{BatchID: rawID}
	}

	pb, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if pb == nil {
		return nil, &ErrBatchNotFound{BatchID: rawID}
	}
	r := runFromStored(pb)
	s.runs.add(r)
	if existing, ok := s.runs.get(id); ok {
		return existing, nil
	}
	return r, nil
}

// handleGetBatch renders the results table, or JSON for API clients.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	progress, _ := run.snapshot()
	records := run.Records()
	scores := run.Scores()

	if wantsJSON(r) {
		s.jsonResponse(w, http.StatusOK, batchJSON{
			ID:       run.id.String(),
			Status:   progress.Status,
			Progress: progress,
			Records:  records,
			Scores:   scores,
		})
		return
	}

	status, extracting, scoringNow := run.state()
	rows := export.Rows(records, export.Options{DescriptionMaxChars: s.cfg.DescriptionMaxChars})
	items := make([]batchItem, len(rows))
	for i, row := range rows {
		items[i].Row = row
		if i < len(scores) {
			items[i].Score = &scores[i]
		}
	}

	s.render(w, http.StatusOK, "batch.html", batchPage{
		ID:         run.id.String(),
		Status:     status,
		Progress:   progress,
		Extracting: extracting,
		Scoring:    scoringNow,
		CanScore:   s.scorer != nil && !extracting && !scoringNow && len(records) > 0,
		Items:      items,
	})
}

// handleBatchEvents streams progress until the batch and any scoring finish.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	for {
		progress, changed := run.snapshot()
		if err := sse.WriteProgress(progress); err != nil {
			return
		}
		if progress.Done {
			sse.WriteComplete(progress.BatchID, progress.Status)
			return
		}

		select {
		case <-changed:
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			sse.WriteError("server shutting down")
			return
		}
	}
}

// handleExportCSV downloads a finished batch as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, extracting, _ := run.state(); extracting {
		s.fail(w, r, &ErrBatchBusy{BatchID: run.id, State: "still extracting"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.csv"`, run.id))
	opts := export.Options{DescriptionMaxChars: s.cfg.DescriptionMaxChars}
	if err := export.WriteCSV(w, run.Records(), opts); err != nil {
		log.Error().Err(err).Str("batch_id", run.id.String()).Msg("csv export failed")
	}
}

// handleScoreBatch starts fit scoring for a finished batch.
func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	if s.scorer == nil {
		s.fail(w, r, ErrScoringUnavailable)
		return
	}
	run, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	records, err := run.startScoring()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		opts := s.cfg.ScoreOptions
		opts.Progress = run.reportScore
		results := scoring.ScoreBatch(s.baseCtx, s.scorer, records, opts)
		run.finishScoring(results)

		if s.store != nil {
			storeCtx, done := context.WithTimeout(context.Background(), storeTimeout)
			defer done()
			if err := s.store.SaveBatchScores(storeCtx, run.id, results); err != nil {
				log.Error().Err(err).Str("batch_id", run.id.String()).Msg("failed to store fit scores")
			}
		}
	}()

	if wantsJSON(r) {
		s.jsonResponse(w, http.StatusAccepted, map[string]string{"batch_id": run.id.String()})
		return
	}
	http.Redirect(w, r, "/batches/"+run.id.String(), http.StatusSeeOther)
}

// handleCancelBatch asks a running batch to stop after its current URL.
func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, extracting, _ := run.state(); extracting && run.cancel != nil {
		log.Info().Str("batch_id", run.id.String()).Msg("batch cancel requested")
		run.cancel()
	}

	if wantsJSON(r) {
		s.jsonResponse(w, http.StatusAccepted, map[string]string{"batch_id": run.id.String()})
		return
	}
	http.Redirect(w, r, "/batches/"+run.id.String(), http.StatusSeeOther)
}
