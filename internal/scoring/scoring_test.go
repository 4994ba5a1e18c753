package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/llm"
	"github.com/jonathan/job-extractor/internal/types"
)

const validResponse = `{"keywords": 80, "requirements": 70, "experience": 90, "qualifications": 60, "overall": 74,
 "strengths": "Go\n\nPostgres", "weaknesses": "No Kubernetes"}`

type fakeClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (c *fakeClient) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.prompts)
	c.prompts = append(c.prompts, prompt)
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	resp := validResponse
	if i < len(c.responses) {
		resp = c.responses[i]
	}
	return resp, err
}

func (c *fakeClient) GetModel(llm.ModelTier) string { return "fake" }
func (c *fakeClient) Close() error                  { return nil }

func record(id, desc string) types.JobPostingRecord {
	return types.JobPostingRecord{
		SourceURL:      "https://www.linkedin.com/jobs/view/" + id + "/",
		CompanyName:    types.Found("Acme"),
		JobTitle:       types.Found("Engineer " + id),
		JobDescription: types.Found(desc),
	}
}

func TestJobFromRecord(t *testing.T) {
	job := JobFromRecord(types.JobPostingRecord{
		SourceURL: "u",
		JobTitle:  types.Found("Engineer"),
	})
	assert.Equal(t, Job{Title: "Engineer", URL: "u"}, job)
}

func TestFitScore_Weighted(t *testing.T) {
	s := FitScore{Keywords: 80, Requirements: 70, Experience: 90, Qualifications: 60}
	assert.Equal(t, 74, s.Weighted())
}

func TestLLMScorer_Score(t *testing.T) {
	client := &fakeClient{}
	scorer := NewLLMScorer(client, "Ten years of Go")

	score, err := scorer.Score(context.Background(), Job{Title: "Go dev", Company: "Acme", Description: "Build APIs"})

	require.NoError(t, err)
	assert.Equal(t, 74, score.Overall)
	assert.Equal(t, "Go\n\nPostgres", score.Strengths)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Ten years of Go")
	assert.Contains(t, client.prompts[0], "Title: Go dev\nCompany: Acme\n\nBuild APIs")
	assert.Contains(t, client.prompts[0], "reverse applicant tracking system")
}

func TestLLMScorer_BuildPrompt_MissingFields(t *testing.T) {
	prompt := NewLLMScorer(&fakeClient{}, "p").BuildPrompt(Job{Description: "Mentions {{.Title}} literally"})

	assert.Contains(t, prompt, "Title: Not provided\nCompany: Not provided")
	assert.Contains(t, prompt, "Mentions {{.Title}} literally")
}

func TestLLMScorer_RejectsInvalidResponse(t *testing.T) {
	client := &fakeClient{responses: []string{`{"overall": 300}`}}
	scorer := NewLLMScorer(client, "profile")

	_, err := scorer.Score(context.Background(), Job{Description: "x"})

	assert.ErrorContains(t, err, "invalid fit score response")
}

func TestLLMScorer_NoDescription(t *testing.T) {
	client := &fakeClient{}
	_, err := NewLLMScorer(client, "p").Score(context.Background(), Job{Title: "t"})
	assert.ErrorIs(t, err, ErrNoDescription)
	assert.Empty(t, client.prompts)
}

func TestScoreBatch_RetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("503"), errors.New("503")}}
	var messages []string

	results := ScoreBatch(context.Background(), NewLLMScorer(client, "p"),
		[]types.JobPostingRecord{record("1", "desc")},
		BatchOptions{BaseDelay: -1, Progress: func(_, _ int, msg string) { messages = append(messages, msg) }})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Score)
	assert.Empty(t, results[0].Error)
	assert.Len(t, client.prompts, 3)
	assert.Contains(t, messages, "Job 1/1: attempt 3/3...")
}

func TestScoreBatch_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("quota exceeded")
	client := &fakeClient{errs: []error{boom, boom, boom, boom}}

	results := ScoreBatch(context.Background(), NewLLMScorer(client, "p"),
		[]types.JobPostingRecord{record("1", "desc")}, BatchOptions{BaseDelay: -1})

	assert.Nil(t, results[0].Score)
	assert.Contains(t, results[0].Error, "after 3 attempts")
	assert.Contains(t, results[0].Error, "quota exceeded")
	assert.Len(t, client.prompts, 3)
}

func TestScoreBatch_SkipsErrorRecordsAndKeepsOrder(t *testing.T) {
	failed := types.JobPostingRecord{SourceURL: "bad", CompanyName: types.Failed("HTTP status 404")}
	client := &fakeClient{}
	var last [2]int

	results := ScoreBatch(context.Background(), NewLLMScorer(client, "p"),
		[]types.JobPostingRecord{record("1", "a"), failed, record("3", "c")},
		BatchOptions{BaseDelay: -1, Progress: func(cur, total int, _ string) { last = [2]int{cur, total} }})

	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Score)
	assert.Equal(t, "skipped: Error: HTTP status 404", results[1].Error)
	assert.Equal(t, "bad", results[1].Job.URL)
	assert.NotNil(t, results[2].Score)
	assert.Len(t, client.prompts, 2)
	assert.Equal(t, [2]int{3, 3}, last)
}

func TestScoreBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ScoreBatch(ctx, NewLLMScorer(&fakeClient{}, "p"),
		[]types.JobPostingRecord{record("1", "a"), record("2", "b")}, BatchOptions{BaseDelay: -1})

	require.Len(t, results, 2)
	assert.NotNil(t, results[0].Score)
	assert.Equal(t, context.Canceled.Error(), results[1].Error)
	assert.Equal(t, "Engineer 2", results[1].Job.Title)
}
