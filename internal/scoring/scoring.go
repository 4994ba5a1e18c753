// Package scoring grades how well a job posting fits a reference profile
// using an LLM.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/llm"
	"github.com/jonathan/job-extractor/internal/prompts"
	"github.com/jonathan/job-extractor/internal/schemas"
	"github.com/jonathan/job-extractor/internal/types"
)

// ErrNoDescription is returned for jobs without description text.
var ErrNoDescription = errors.New("job has no description")

// Job is the scoring input derived from one record.
type Job struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// JobFromRecord maps a record to a Job. Missing fields become "".
func JobFromRecord(rec types.JobPostingRecord) Job {
	value := func(f types.Field) string {
		if f.OK() {
			return f.Value
		}
		return ""
	}
	return Job{
		Title:       value(rec.JobTitle),
		Company:     value(rec.CompanyName),
		Description: value(rec.JobDescription),
		URL:         rec.SourceURL,
	}
}

// FitScore is the graded fit of a job against the profile. Scores are 0-100.
type FitScore struct {
	Keywords       int    `json:"keywords"`
	Requirements   int    `json:"requirements"`
	Experience     int    `json:"experience"`
	Qualifications int    `json:"qualifications"`
	Overall        int    `json:"overall"`
	Strengths      string `json:"strengths"`
	Weaknesses     string `json:"weaknesses"`
}

// Weighted recomputes the overall score from the parts: 10% keywords and
// 30% each for requirements, experience and qualifications.
func (s FitScore) Weighted() int {
	total := 10*s.Keywords + 30*s.Requirements + 30*s.Experience + 30*s.Qualifications
	return (total + 50) / 100
}

// Scorer grades a single job.
type Scorer interface {
	Score(ctx context.Context, job Job) (*FitScore, error)
}

var jobTemplate = prompts.MustGet("scoring.json", "fit-score-job")

var fitScorePrompt = llm.PromptSchema{
	Name: "FitScore",
	Description: prompts.MustGet("scoring.json", "fit-score-system"),
	Fields: []llm.SchemaField{
		{Name: "keywords", Type: "integer 0-100", Required: true},
		{Name: "requirements", Type: "integer 0-100", Required: true},
		{Name: "experience", Type: "integer 0-100", Required: true},
		{Name: "qualifications", Type: "integer 0-100", Required: true},
		{Name: "overall", Type: "integer 0-100", Required: true},
		{Name: "strengths", Type: "string", Description: "one topic per paragraph, separated by blank lines", Required: true},
		{Name: "weaknesses", Type: "string", Description: "one topic per paragraph, separated by blank lines", Required: true},
	},
	Instructions: []string{
		"Judge only against the profile below; do not assume skills it does not mention.",
		"Use whole numbers for every score.",
	},
}

// LLMScorer scores jobs with an LLM client against a fixed profile.
type LLMScorer struct {
	client  llm.Client
	profile string
	tier    llm.ModelTier
}

// NewLLMScorer creates a scorer for profile.
func NewLLMScorer(client llm.Client, profile string) *LLMScorer {
	return &LLMScorer{client: client, profile: profile, tier: llm.TierStandard}
}

// BuildPrompt returns the prompt sent for job.
func (s *LLMScorer) BuildPrompt(job Job) string {
	title := job.Title
	if title == "" {
		title = "Not provided"
	}
	company := job.Company
	if company == "" {
		company = "Not provided"
	}
	posting := prompts.Format(jobTemplate, map[string]string{
		"Title":       title,
		"Company":     company,
		"Description": job.Description,
	})
	return llm.BuildPrompt(fitScorePrompt,
		llm.Section{Title: "Candidate profile", Body: s.profile},
		llm.Section{Title: "Job posting", Body: posting},
	)
}

// Score implements Scorer. The response must satisfy the fit-score schema.
func (s *LLMScorer) Score(ctx context.Context, job Job) (*FitScore, error) {
	if strings.TrimSpace(job.Description) == "" {
		return nil, ErrNoDescription
	}

	raw, err := s.client.GenerateJSON(ctx, s.BuildPrompt(job), s.tier)
	if err != nil {
		return nil, err
	}
	if err := schemas.FitScore().Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid fit score response: %w", err)
	}

	var score FitScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		return nil, fmt.Errorf("failed to decode fit score: %w", err)
	}

	if diff := score.Overall - score.Weighted(); diff > 10 || diff < -10 {
		log.Debug().Str("url", job.URL).Int("overall", score.Overall).Int("weighted", score.Weighted()).
			Msg("model overall score differs from weighted parts")
	}
	return &score, nil
}
