// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-extractor/internal/normalize"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// descriptionPreview is how much of a description a record box shows
	descriptionPreview = 200
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(normalize.Truncate(line, boxWidth-4)))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s with spaces to the box's inner width, counting runes.
func pad(s string) string {
	n := boxWidth - 4 - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	return s + strings.Repeat(" ", n)
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(word) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// PrintRecord outputs a human-readable summary of one extracted record.
func (p *Printer) PrintRecord(rec types.JobPostingRecord) {
	var sb strings.Builder

	if rec.Failed() {
		sb.WriteString(fmt.Sprintf("URL:      %s\n", rec.SourceURL))
		sb.WriteString(rec.CompanyName.String())
		p.printBox("FAILED", sb.String())
		return
	}

	sb.WriteString(fmt.Sprintf("URL:       %s\n", rec.SourceURL))
	sb.WriteString(fmt.Sprintf("Title:     %s\n", rec.JobTitle))
	sb.WriteString(fmt.Sprintf("Company:   %s\n", rec.CompanyName))
	if rec.CompanyURL.OK() {
		sb.WriteString(fmt.Sprintf("           %s\n", rec.CompanyURL))
	}
	sb.WriteString(fmt.Sprintf("Location:  %s\n", rec.Location))
	sb.WriteString(fmt.Sprintf("Posted:    %s (%s)\n", rec.PostedAtRaw, rec.PostedAtResolved))
	sb.WriteString(fmt.Sprintf("Applicants: %s\n", rec.ApplicantCount))
	sb.WriteString(fmt.Sprintf("Apply:     %s", rec.Application))
	if rec.Application.Confidence != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", rec.Application.Confidence))
	}
	sb.WriteString("\n")

	if rec.JobDescription.OK() {
		source := rec.DescriptionSource
		if source == "" {
			source = "unknown"
		}
		sb.WriteString(fmt.Sprintf("\nDescription (%d chars, via %s):\n",
			utf8.RuneCountInString(rec.JobDescription.Value), source))
		preview := normalize.Truncate(rec.JobDescription.Value, descriptionPreview)
		for _, line := range wrap(preview, boxWidth-6) {
			sb.WriteString("  " + line + "\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("\nDescription: %s\n", rec.JobDescription))
	}

	p.printBox("JOB POSTING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchSummary outputs counts of successful and failed records and lists
// the failures.
func (p *Printer) PrintBatchSummary(records []types.JobPostingRecord) {
	if len(records) == 0 {
		return
	}

	var failed []types.JobPostingRecord
	for _, rec := range records {
		if rec.Failed() {
			failed = append(failed, rec)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total:     %d\n", len(records)))
	sb.WriteString(fmt.Sprintf("Extracted: %d\n", len(records)-len(failed)))
	sb.WriteString(fmt.Sprintf("Failed:    %d", len(failed)))
	for _, rec := range failed {
		sb.WriteString(fmt.Sprintf("\n  • %s", rec.SourceURL))
	}

	p.printBox("BATCH SUMMARY", sb.String())
}

// PrintFitScore outputs one fit-scoring result.
func (p *Printer) PrintFitScore(result scoring.Result) {
	var sb strings.Builder
	title := result.Job.Title
	if title == "" {
		title = result.Job.URL
	}
	sb.WriteString(fmt.Sprintf("Job: %s\n", title))

	if result.Score == nil {
		sb.WriteString(fmt.Sprintf("Not scored: %s", result.Error))
		p.printBox("FIT SCORE", sb.String())
		return
	}

	s := result.Score
	sb.WriteString(fmt.Sprintf("Overall:        %d\n", s.Overall))
	sb.WriteString(fmt.Sprintf("Keywords:       %d\n", s.Keywords))
	sb.WriteString(fmt.Sprintf("Requirements:   %d\n", s.Requirements))
	sb.WriteString(fmt.Sprintf("Experience:     %d\n", s.Experience))
	sb.WriteString(fmt.Sprintf("Qualifications: %d\n", s.Qualifications))
	writeParagraphs(&sb, "Strengths", s.Strengths)
	writeParagraphs(&sb, "Weaknesses", s.Weaknesses)

	p.printBox("FIT SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

func writeParagraphs(sb *strings.Builder, heading, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	sb.WriteString("\n" + heading + ":\n")
	for _, para := range strings.Split(text, normalize.ParagraphBreak) {
		for i, line := range wrap(para, boxWidth-8) {
			prefix := "    "
			if i == 0 {
				prefix = "  • "
			}
			sb.WriteString(prefix + line + "\n")
		}
	}
}
