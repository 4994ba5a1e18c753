// Package export renders records for people: CSV files and the row view used
// by the HTML results table.
package export

import (
	"encoding/csv"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/jonathan/job-extractor/internal/normalize"
	"github.com/jonathan/job-extractor/internal/types"
)

// Columns is the CSV header, in order.
var Columns = []string{
	"link",
	"company_name",
	"company_link",
	"job_title",
	"job_description",
	"location",
	"posted_at",
	"posted_date",
	"applicants",
	"application_type",
	"retrieved_at",
}

// Options controls presentation.
type Options struct {
	// DescriptionMaxChars truncates descriptions; zero keeps them whole.
	DescriptionMaxChars int
}

// Row is the presentation copy of a record. Building one never modifies the
// record.
type Row struct {
	Link            string
	CompanyName     string
	CompanyLink     string
	JobTitle        string
	JobDescription  string
	Location        string
	PostedAt        string
	PostedDate      string
	Applicants      string
	ApplicationType string
	RetrievedAt     string
	Failed          bool

	companyHref string
}

// NewRow builds the row for rec.
func NewRow(rec types.JobPostingRecord, opts Options) Row {
	desc := rec.JobDescription.String()
	if rec.JobDescription.OK() {
		desc = normalize.Truncate(desc, opts.DescriptionMaxChars)
	}
	return Row{
		Link:            rec.SourceURL,
		CompanyName:     rec.CompanyName.String(),
		CompanyLink:     rec.CompanyURL.String(),
		JobTitle:        rec.JobTitle.String(),
		JobDescription:  desc,
		Location:        rec.Location.String(),
		PostedAt:        rec.PostedAtRaw.String(),
		PostedDate:      rec.PostedAtResolved.String(),
		Applicants:      rec.ApplicantCount.String(),
		ApplicationType: rec.Application.String(),
		RetrievedAt:     rec.RetrievedAt.UTC().Format(time.RFC3339),
		Failed:          rec.Failed(),
		companyHref:     href(rec.CompanyURL),
	}
}

func href(f types.Field) string {
	if f.OK() {
		return f.Value
	}
	return ""
}

// CompanyHref is the company page link, or "" when none was found.
func (r Row) CompanyHref() string {
	return r.companyHref
}

// Rows builds the rows for records, in order.
func Rows(records []types.JobPostingRecord, opts Options) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = NewRow(rec, opts)
	}
	return rows
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	return []string{
		r.Link,
		r.CompanyName,
		r.CompanyLink,
		r.JobTitle,
		r.JobDescription,
		r.Location,
		r.PostedAt,
		r.PostedDate,
		r.Applicants,
		r.ApplicationType,
		r.RetrievedAt,
	}
}

// DescriptionHTML escapes the description and turns paragraph and line
// breaks into <br> tags.
func (r Row) DescriptionHTML() template.HTML {
	return BreaksToHTML(r.JobDescription)
}

// BreaksToHTML escapes s, then renders paragraph breaks as <br><br> and
// remaining newlines as <br>.
func BreaksToHTML(s string) template.HTML {
	escaped := html.EscapeString(s)
	escaped = strings.ReplaceAll(escaped, normalize.ParagraphBreak, "<br><br>")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped) //nolint:gosec // escaped above
}

// WriteCSV writes the header and one line per record.
func WriteCSV(w io.Writer, records []types.JobPostingRecord, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range Rows(records, opts) {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", row.Link, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
