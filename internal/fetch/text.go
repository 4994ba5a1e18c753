package fetch

import (
	"context"
	"time"

	"github.com/jonathan/job-extractor/internal/textextract"
)

// TextStrategy fetches the page and runs readable-text extraction over it.
// It is the last resort when neither the rendered nor the raw markup could be
// retrieved in a usable form.
type TextStrategy struct {
	opts *Options
}

// NewTextStrategy creates the text-extraction strategy.
func NewTextStrategy(opts *Options) *TextStrategy {
	return &TextStrategy{opts: opts.withDefaults()}
}

// Name implements Strategy.
func (s *TextStrategy) Name() string { return "text" }

// Fetch implements Strategy.
func (s *TextStrategy) Fetch(ctx context.Context, urlStr string) (*Document, error) {
	body, status, err := get(ctx, urlStr, s.opts)
	if err != nil {
		return nil, err
	}
	extracted := textextract.FromHTML(body)
	if extracted.Text == "" {
		return nil, &Error{URL: urlStr, Message: "no readable text extracted", StatusCode: status}
	}
	return &Document{
		URL:        urlStr,
		HTML:       body,
		Text:       extracted.Text,
		Strategy:   s.Name(),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}
