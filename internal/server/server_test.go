package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/export"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/locate"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/types"
)

const jobPage = `<html><body>
<h1 class="top-card-layout__title">Platform Engineer</h1>
<a class="topcard__org-name-link" href="https://www.linkedin.com/company/hooli">Hooli</a>
<span class="topcard__flavor topcard__flavor--bullet">Palo Alto, CA</span>
<span class="posted-time-ago__text">1 day ago</span>
<div class="show-more-less-html__markup"><p>Hooli is hiring a platform engineer to run the build farm.</p><p>On call one week in six.</p></div>
</body></html>`

func jobURL(id string) string {
	return "https://www.linkedin.com/jobs/view/" + id + "/"
}

// gateFetcher serves jobPage for known URLs. When gate is set every fetch
// announces itself on started and waits for a value on gate first.
type gateFetcher struct {
	pages   map[string]bool
	gate    chan struct{}
	started chan string
}

func (f *gateFetcher) Fetch(ctx context.Context, u string) (*fetch.Document, error) {
	if f.gate != nil {
		f.started <- u
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !f.pages[u] {
		return nil, &fetch.FetchError{URL: u, Attempts: []fetch.Attempt{
			{Strategy: "http", Err: &fetch.Error{URL: u, Message: "HTTP status 404", StatusCode: 404}},
		}}
	}
	return &fetch.Document{URL: u, HTML: jobPage, Strategy: "http"}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	ignored   []string
	created   map[uuid.UUID]int
	completed map[uuid.UUID]string
	records   map[uuid.UUID][]types.JobPostingRecord
	scores    map[uuid.UUID]any
	stored    map[uuid.UUID]*db.ProcessedBatch
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		created:   make(map[uuid.UUID]int),
		completed: make(map[uuid.UUID]string),
		records:   make(map[uuid.UUID][]types.JobPostingRecord),
		scores:    make(map[uuid.UUID]any),
		stored:    make(map[uuid.UUID]*db.ProcessedBatch),
	}
}

func (f *fakeStore) IgnoredURLStrings(context.Context) ([]string, error) {
	return f.ignored, nil
}

func (f *fakeStore) CreateBatch(_ context.Context, id uuid.UUID, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[id] = n
	return nil
}

func (f *fakeStore) CompleteBatch(_ context.Context, id uuid.UUID, status string, records []types.JobPostingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = status
	f.records[id] = records
	return nil
}

func (f *fakeStore) SaveBatchScores(_ context.Context, id uuid.UUID, scores any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[id] = scores
	return nil
}

func (f *fakeStore) GetBatch(_ context.Context, id uuid.UUID) (*db.ProcessedBatch, error) {
	return f.stored[id], nil
}

func (f *fakeStore) ListBatches(context.Context, int) ([]db.BatchSummary, error) {
	var out []db.BatchSummary
	for _, b := range f.stored {
		out = append(out, db.BatchSummary{ID: b.ID, Status: b.Status, URLCount: b.URLCount, CreatedAt: b.CreatedAt})
	}
	return out, f.listErr
}

func (f *fakeStore) completedStatus(id uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.completed[id]
	return s, ok
}

type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, job scoring.Job) (*scoring.FitScore, error) {
	if job.Description == "" {
		return nil, scoring.ErrNoDescription
	}
	return &scoring.FitScore{Keywords: 50, Requirements: 60, Experience: 70, Qualifications: 80, Overall: 68,
		Strengths: "Build farms\n\nOn call", Weaknesses: "<none>"}, nil
}

type testEnv struct {
	srv     *Server
	fetcher *gateFetcher
	store   *fakeStore
}

func newTestEnv(t *testing.T, cfg Config, withStore bool, scorer scoring.Scorer) *testEnv {
	t.Helper()
	f := &gateFetcher{
		pages:   map[string]bool{jobURL("1"): true, jobURL("3"): true},
		started: make(chan string, 16),
	}
	ex := extractor.New(f, locate.New(locate.DefaultSelectors()), extractor.Config{})

	deps := Deps{Runner: ex, Scorer: scorer}
	env := &testEnv{fetcher: f}
	if withStore {
		env.store = newFakeStore()
		deps.Store = env.store
	}
	cfg.ScoreOptions.BaseDelay = -1

	srv, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	env.srv = srv
	return env
}

func (e *testEnv) do(method, target string, form url.Values, jsonAccept bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if jsonAccept {
		req.Header.Set("Accept", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) submit(t *testing.T, urls, exclude string) uuid.UUID {
	t.Helper()
	rec := e.do(http.MethodPost, "/batches", url.Values{"urls": {urls}, "exclude": {exclude}}, true)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body struct {
		BatchID string `json:"batch_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return uuid.MustParse(body.BatchID)
}

func (e *testEnv) waitDone(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.Eventually(t, func() bool {
		r, ok := e.srv.runs.get(id)
		if !ok {
			return false
		}
		p, _ := r.snapshot()
		return p.Done
	}, 5*time.Second, 10*time.Millisecond)
}

func (e *testEnv) getJSON(t *testing.T, id uuid.UUID) batchJSON {
	t.Helper()
	rec := e.do(http.MethodGet, "/batches/"+id.String(), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var out batchJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)
	rec := env.do(http.MethodGet, "/health", nil, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestIndex_ListsStoredBatches(t *testing.T) {
	env := newTestEnv(t, Config{}, true, nil)
	id := uuid.New()
	env.store.stored[id] = &db.ProcessedBatch{ID: id, Status: db.BatchCompleted, URLCount: 3, CreatedAt: time.Now()}

	rec := env.do(http.MethodGet, "/", nil, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="urls"`)
	assert.Contains(t, rec.Body.String(), id.String())
	assert.Contains(t, rec.Body.String(), "ignore list")
}

func TestIndex_StoreErrorStillRenders(t *testing.T) {
	env := newTestEnv(t, Config{}, true, nil)
	env.store.listErr = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No batches yet")
}

func TestCreateBatch_Validation(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)

	tests := []struct {
		name    string
		urls    string
		exclude string
		json    bool
		want    string
	}{
		{name: "empty form html", urls: "", want: "at least one URL is required"},
		{name: "empty form json", urls: "", json: true, want: "at least one URL is required"},
		{name: "blank lines only", urls: "\n  \n", want: "no URLs left"},
		{name: "everything excluded", urls: jobURL("1"), exclude: "https://www.linkedin.com/jobs/view/1", json: true, want: "no URLs left"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/batches", url.Values{"urls": {tt.urls}, "exclude": {tt.exclude}}, tt.json)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			if !tt.json {
				assert.Contains(t, rec.Body.String(), "<form")
			}
		})
	}
}

func TestCreateBatch_RedirectsBrowser(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)

	rec := env.do(http.MethodPost, "/batches", url.Values{"urls": {jobURL("1")}}, false)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/batches/"))
	env.waitDone(t, uuid.MustParse(strings.TrimPrefix(loc, "/batches/")))
}

func TestBatch_EndToEnd(t *testing.T) {
	env := newTestEnv(t, Config{DescriptionMaxChars: 40}, true, nil)
	env.store.ignored = []string{jobURL("5")}

	input := strings.Join([]string{
		"https://uk.linkedin.com/jobs/view/1?trk=abc",
		"",
		jobURL("2"),
		jobURL("1"),
		jobURL("3"),
		jobURL("4"),
		jobURL("5"),
	}, "\r\n")
	id := env.submit(t, input, jobURL("4"))
	env.waitDone(t, id)

	got := env.getJSON(t, id)
	assert.Equal(t, db.BatchCompleted, got.Status)
	assert.True(t, got.Progress.Done)
	require.Len(t, got.Records, 3)
	assert.Equal(t, jobURL("1"), got.Records[0].SourceURL)
	assert.Equal(t, "Hooli", got.Records[0].CompanyName.Value)
	assert.True(t, got.Records[1].Failed())
	assert.Equal(t, jobURL("3"), got.Records[2].SourceURL)

	status, ok := env.store.completedStatus(id)
	assert.True(t, ok)
	assert.Equal(t, db.BatchCompleted, status)
	assert.Equal(t, 3, env.store.created[id])

	page := env.do(http.MethodGet, "/batches/"+id.String(), nil, false)
	require.Equal(t, http.StatusOK, page.Code)
	body := page.Body.String()
	assert.Contains(t, body, "Platform Engineer")
	assert.Contains(t, body, "Error: all fetch strategies failed")
	assert.Contains(t, body, "...")
	assert.NotContains(t, body, "build farm")
	assert.NotContains(t, body, "Score fit")
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)
	id := env.submit(t, jobURL("1")+"\n"+jobURL("2"), "")
	env.waitDone(t, id)

	rec := env.do(http.MethodGet, "/batches/"+id.String()+"/export.csv", nil, false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "batch-"+id.String()+".csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Columns, rows[0])
	assert.Equal(t, "Hooli", rows[1][1])
	assert.True(t, strings.HasPrefix(rows[2][1], "Error: "))
}

func TestExportCSV_WhileRunning(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)
	env.fetcher.gate = make(chan struct{})
	id := env.submit(t, jobURL("1"), "")

	rec := env.do(http.MethodGet, "/batches/"+id.String()+"/export.csv", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(env.fetcher.gate)
	env.waitDone(t, id)
}

func TestBatchEvents_StreamsUntilComplete(t *testing.T) {
	env := newTestEnv(t, Config{}, false, nil)
	env.fetcher.gate = make(chan struct{})
	id := env.submit(t, jobURL("1")+"\n"+jobURL("3"), "")

	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	go func() {
		env.fetcher.gate <- struct{}{}
		env.fetcher.gate <- struct{}{}
	}()

	resp, err := http.Get(ts.URL + "/batches/" + id.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	stream := sb.String()
	assert.Contains(t, stream, "event: progress")
	assert.Contains(t, stream, `"done":true`)
	assert.Contains(t, stream, "event: complete")
	assert.Contains(t, stream, `"status":"completed"`)
}

func TestCancelBatch(t *testing.T) {
	env := newTestEnv(t, Config{}, true, nil)
	env.fetcher.gate = make(chan struct{})
	id := env.submit(t, jobURL("1")+"\n"+jobURL("2")+"\n"+jobURL("3"), "")

	assert.Equal(t, jobURL("1"), <-env.fetcher.started)
	rec := env.do(http.MethodPost, "/batches/"+id.String()+"/cancel", nil, true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// the URL in flight still completes
	env.fetcher.gate <- struct{}{}
	env.waitDone(t, id)

	got := env.getJSON(t, id)
	assert.Equal(t, db.BatchCancelled, got.Status)
	require.Len(t, got.Records, 3)
	assert.Equal(t, "Hooli", got.Records[0].CompanyName.Value)
	assert.Contains(t, got.Records[2].CompanyName.Value, "batch cancelled")

	status, _ := env.store.completedStatus(id)
	assert.Equal(t, db.BatchCancelled, status)
}

func TestScoreBatch(t *testing.T) {
	env := newTestEnv(t, Config{}, true, fakeScorer{})
	id := env.submit(t, jobURL("1")+"\n"+jobURL("2"), "")
	env.waitDone(t, id)

	page := env.do(http.MethodGet, "/batches/"+id.String(), nil, false)
	assert.Contains(t, page.Body.String(), "Score fit")

	rec := env.do(http.MethodPost, "/batches/"+id.String()+"/score", nil, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	env.waitDone(t, id)

	got := env.getJSON(t, id)
	require.Len(t, got.Scores, 2)
	require.NotNil(t, got.Scores[0].Score)
	assert.Equal(t, 68, got.Scores[0].Score.Overall)
	assert.Contains(t, got.Scores[1].Error, "skipped")
	assert.Equal(t, PhaseScore, got.Progress.Phase)

	body := env.do(http.MethodGet, "/batches/"+id.String(), nil, false).Body.String()
	assert.Contains(t, body, "Build farms<br><br>On call")
	assert.Contains(t, body, "&lt;none&gt;")

	require.Eventually(t, func() bool {
		env.store.mu.Lock()
		defer env.store.mu.Unlock()
		_, ok := env.store.scores[id]
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestScoreBatch_Errors(t *testing.T) {
	t.Run("no scorer", func(t *testing.T) {
		env := newTestEnv(t, Config{}, false, nil)
		id := env.submit(t, jobURL("1"), "")
		env.waitDone(t, id)

		rec := env.do(http.MethodPost, "/batches/"+id.String()+"/score", nil, true)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("still extracting", func(t *testing.T) {
		env := newTestEnv(t, Config{}, false, fakeScorer{})
		env.fetcher.gate = make(chan struct{})
		id := env.submit(t, jobURL("1"), "")

		rec := env.do(http.MethodPost, "/batches/"+id.String()+"/score", nil, true)
		assert.Equal(t, http.StatusConflict, rec.Code)

		close(env.fetcher.gate)
		env.waitDone(t, id)
	})
}

func TestGetBatch_NotFound(t *testing.T) {
	env := newTestEnv(t, Config{}, true, nil)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := env.do(http.MethodGet, "/batches/"+id, nil, true)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

func TestGetBatch_LoadsStoredBatch(t *testing.T) {
	env := newTestEnv(t, Config{}, true, nil)
	id := uuid.New()
	scores, err := json.Marshal([]scoring.Result{{Job: scoring.Job{Title: "Platform Engineer"}, Score: &scoring.FitScore{Overall: 90}}})
	require.NoError(t, err)
	env.store.stored[id] = &db.ProcessedBatch{
		ID:       id,
		Status:   db.BatchCompleted,
		URLCount: 1,
		Records: []types.JobPostingRecord{{
			SourceURL:   jobURL("9"),
			CompanyName: types.Found("Pied Piper"),
		}},
		Scores:    scores,
		CreatedAt: time.Now(),
	}

	got := env.getJSON(t, id)
	assert.Equal(t, db.BatchCompleted, got.Status)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Pied Piper", got.Records[0].CompanyName.Value)
	require.Len(t, got.Scores, 1)
	assert.Equal(t, 90, got.Scores[0].Score.Overall)

	rec := env.do(http.MethodGet, "/batches/"+id.String()+"/export.csv", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pied Piper")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 1}, false, nil)

	id := env.submit(t, jobURL("1"), "")
	rec := env.do(http.MethodPost, "/batches", url.Values{"urls": {jobURL("3")}}, true)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	env.waitDone(t, id)
}

func TestRegistry_EvictsFinishedRuns(t *testing.T) {
	g := newRegistry()
	busy := newRun(1)
	busy.id = uuid.New()
	g.add(busy)

	for i := 0; i < maxRuns+5; i++ {
		r := newRun(1)
		r.id = uuid.New()
		r.finishExtraction(nil, db.BatchCompleted)
		g.add(r)
	}

	assert.Len(t, g.runs, maxRuns)
	_, ok := g.get(busy.id)
	assert.True(t, ok, "running batches are never evicted")
}
