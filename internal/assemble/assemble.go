// Package assemble builds the final record for one URL from the fetch
// outcome and the normalized fields.
package assemble

import (
	"errors"
	"time"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/normalize"
	"github.com/jonathan/job-extractor/internal/types"
)

// Input is everything known about one URL once extraction has finished.
type Input struct {
	URL         string
	RetrievedAt time.Time
	// FetchErr short-circuits the record to an error record when set.
	FetchErr    error
	Normalized  normalize.Normalized
	Application types.Application
	// DescriptionSource names the strategy that produced the description.
	DescriptionSource string
}

// Assemble returns the record for in. Every field is populated, with the
// NotFound sentinel standing in for missing values. The result depends only
// on in.
func Assemble(in Input) types.JobPostingRecord {
	if in.FetchErr != nil {
		return Failed(in.URL, in.RetrievedAt, in.FetchErr)
	}

	app := in.Application
	if app.Mode == "" {
		app.Mode = types.ModeUnknown
	}

	n := in.Normalized
	return types.JobPostingRecord{
		SourceURL:         in.URL,
		CompanyName:       n.CompanyName,
		CompanyURL:        n.CompanyURL,
		JobTitle:          n.Title,
		JobDescription:    n.Description,
		Location:          n.Location,
		PostedAtRaw:       n.PostedAtRaw,
		PostedAtResolved:  n.PostedAtResolved,
		ApplicantCount:    n.ApplicantCount,
		Application:       app,
		RetrievedAt:       in.RetrievedAt,
		DescriptionSource: in.DescriptionSource,
	}
}

// Failed returns the error record for a URL: the failure message on
// company_name and NotFound everywhere else.
func Failed(url string, retrievedAt time.Time, err error) types.JobPostingRecord {
	return types.JobPostingRecord{
		SourceURL:   url,
		CompanyName: types.Failed(errorMessage(err)),
		Application: types.Application{Mode: types.ModeUnknown},
		RetrievedAt: retrievedAt,
	}
}

func errorMessage(err error) string {
	var fetchErr *fetch.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Summary()
	}
	return err.Error()
}
