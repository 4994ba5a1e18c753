package locate

import (
	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/types"
)

// DescriptionPlaceholder is emitted when every description strategy failed.
// Scoring needs some text, so the description is never left NotFound.
const DescriptionPlaceholder = "Job description not available"

// Fields holds the located raw values for one document.
type Fields struct {
	Title       Result
	CompanyName Result
	CompanyURL  Result
	Description Result
	Location    Result
	PostedAt    Result
	Applicants  Result
	Application types.Application

	// DescriptionPlaceholder is set when Description holds the placeholder.
	DescriptionPlaceholder bool
}

// Locator runs the per-field strategy chains.
type Locator struct {
	title       Chain
	company     Chain
	companyURL  Chain
	description Chain
	location    Chain
	postedAt    Chain
	applicants  Chain
	apply       Chain
	matcher     *applyMatcher
}

// New builds the strategy chains from sel.
func New(sel Selectors) *Locator {
	matcher := newApplyMatcher(sel)
	recognised := func(label string) bool { return matcher.mode(label) != types.ModeUnknown }

	return &Locator{
		matcher: matcher,
		title: Chain{
			Field:      "job_title",
			Strategies: []Strategy{selectorText(sel.Title)},
		},
		company: Chain{
			Field:      "company_name",
			Strategies: []Strategy{selectorText(sel.Company)},
		},
		companyURL: Chain{
			Field:      "company_url",
			Strategies: []Strategy{selectorHref(sel.Company)},
		},
		description: Chain{
			Field: "job_description",
			Strategies: []Strategy{
				renderedContainer(sel.DescriptionContainers),
				staticContainer(sel.DescriptionContainers),
				textExtraction(sel.SectionMarkers),
				xpathBlocks(sel.DescriptionXPaths),
			},
			Accept: longEnough,
		},
		location: Chain{
			Field: "location",
			Strategies: []Strategy{
				topCard(sel, KindLocation),
				knownClasses(sel.LocationClasses, KindLocation),
				textSweep(LooksLikeLocation),
			},
			Accept: func(v string) bool { return Classify(v) == KindLocation },
		},
		postedAt: Chain{
			Field: "posted_at",
			Strategies: []Strategy{
				topCard(sel, KindDate),
				knownClasses(sel.PostedAtClasses, KindDate),
				textSweep(IsDateLike),
			},
			Accept: IsDateLike,
		},
		applicants: Chain{
			Field: "applicant_count",
			Strategies: []Strategy{
				topCard(sel, KindApplicants),
				knownClasses(sel.ApplicantClasses, KindApplicants),
				textSweep(func(v string) bool { return Classify(v) == KindApplicants }),
			},
			Accept: func(v string) bool { return Classify(v) == KindApplicants },
		},
		apply: Chain{
			Field: "application_mode",
			Strategies: []Strategy{
				applyButton(sel.ApplyButtonXPath),
				applyAlternates(sel.ApplyAlternates, recognised),
				pagePhrases(matcher),
			},
			Accept: recognised,
		},
	}
}

// Locate runs every field chain against doc. A failure in one chain never
// affects another. locale is the country subdomain of the requested URL.
func (l *Locator) Locate(doc *fetch.Document, locale string) Fields {
	f := Fields{
		Title:       l.title.Run(doc),
		CompanyName: l.company.Run(doc),
		CompanyURL:  l.companyURL.Run(doc),
		Description: l.description.Run(doc),
		Location:    l.location.Run(doc),
		PostedAt:    l.postedAt.Run(doc),
		Applicants:  l.applicants.Run(doc),
		Application: AnnotateLocale(l.Application(doc), locale),
	}

	lowest := len(l.description.Strategies)
	switch {
	case !f.Description.Found:
		f.Description = Result{Value: DescriptionPlaceholder, Strategy: "placeholder", Found: true}
		f.DescriptionPlaceholder = true
		log.Warn().Str("url", doc.URL).Str("field", "job_description").Msg("partial extraction: description placeholder used")
	case f.Description.Tier == lowest:
		log.Warn().Str("url", doc.URL).Str("field", "job_description").Str("strategy", f.Description.Strategy).
			Msg("partial extraction: description from lowest-priority strategy")
	}
	return f
}

// Application detects the apply flow. Label-based tiers are confirmed; the
// page-wide phrase search is only an inference.
func (l *Locator) Application(doc *fetch.Document) types.Application {
	res := l.apply.Run(doc)
	if !res.Found {
		return types.Application{Mode: types.ModeUnknown}
	}
	app := types.Application{
		Mode:       l.matcher.mode(res.Value),
		Label:      res.Value,
		Confidence: types.ConfidenceConfirmed,
	}
	if res.Strategy == "page-phrases" {
		app.Confidence = types.ConfidenceInferred
	}
	return app
}
