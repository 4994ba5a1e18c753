package locate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/types"
)

func loadFixture(t *testing.T, name string, rendered bool) *fetch.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return &fetch.Document{
		URL:      "https://www.linkedin.com/jobs/view/123/",
		HTML:     string(data),
		Rendered: rendered,
	}
}

func TestLocate_PublicView(t *testing.T) {
	doc := loadFixture(t, "public_job.html", false)

	f := New(DefaultSelectors()).Locate(doc, "")

	assert.Equal(t, "Senior Go Engineer", f.Title.Value)
	assert.Equal(t, "Acme Corp", f.CompanyName.Value)
	assert.Equal(t, "https://br.linkedin.com/company/acme-corp", f.CompanyURL.Value)
	assert.Equal(t, "São Paulo, São Paulo, Brazil", f.Location.Value)
	assert.Equal(t, "top-card", f.Location.Strategy)
	assert.Equal(t, "3 days ago", f.PostedAt.Value)
	assert.Equal(t, "Over 200 applicants", f.Applicants.Value)

	assert.Equal(t, "static-html", f.Description.Strategy)
	assert.Equal(t, 2, f.Description.Tier)
	assert.True(t, strings.HasPrefix(f.Description.Value, "About the job\n\nAcme Corp is looking"))
	assert.Contains(t, f.Description.Value, "Own PostgreSQL schemas & migrations")
	assert.False(t, f.DescriptionPlaceholder)

	assert.Equal(t, types.ModeExternalApply, f.Application.Mode)
	assert.Equal(t, types.ConfidenceConfirmed, f.Application.Confidence)
	assert.Equal(t, "Apply", f.Application.Label)
	assert.Empty(t, f.Application.Note)
}

func TestLocate_PublicViewNonEnglishLocale(t *testing.T) {
	doc := loadFixture(t, "public_job.html", false)

	f := New(DefaultSelectors()).Locate(doc, "br")

	assert.Equal(t, types.ModeExternalApply, f.Application.Mode)
	assert.Equal(t, types.ConfidenceUnconfirmed, f.Application.Confidence)
	assert.Equal(t, UnconfirmedEasyApplyNote, f.Application.Note)
}

func TestLocate_SignedInRendered(t *testing.T) {
	doc := loadFixture(t, "signed_in_job.html", true)

	f := New(DefaultSelectors()).Locate(doc, "pt")

	assert.Equal(t, "Staff Platform Engineer", f.Title.Value)
	assert.Equal(t, "Globex", f.CompanyName.Value)
	assert.Equal(t, "https://www.linkedin.com/company/globex/life/", f.CompanyURL.Value)
	assert.Equal(t, "Lisbon, Portugal", f.Location.Value)
	assert.Equal(t, "Reposted 2 weeks ago", f.PostedAt.Value)
	assert.Equal(t, "47 applicants", f.Applicants.Value)

	assert.Equal(t, "rendered-dom", f.Description.Strategy)
	assert.Equal(t, 1, f.Description.Tier)
	assert.True(t, strings.HasPrefix(f.Description.Value, "About the job\n\nGlobex runs"))

	// Easy Apply is never downgraded by locale.
	assert.Equal(t, types.ModeEasyApply, f.Application.Mode)
	assert.Equal(t, types.ConfidenceConfirmed, f.Application.Confidence)
	assert.Equal(t, "Easy Apply", f.Application.Label)
	assert.Empty(t, f.Application.Note)
}

func TestLocate_HigherPriorityDescriptionWins(t *testing.T) {
	body := strings.Repeat("Container text that should win over the page text. ", 4)
	page := `<html><body>
		<div id="job-details"><p>` + body + `</p></div>
		<main><p>About the job</p><p>` + strings.Repeat("Lower priority page text. ", 10) + `</p></main>
	</body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")

	assert.Equal(t, "static-html", f.Description.Strategy)
	assert.Contains(t, f.Description.Value, "Container text that should win")
	assert.NotContains(t, f.Description.Value, "Lower priority")
}

func TestLocate_DescriptionFromTextExtraction(t *testing.T) {
	page := `<html><body><main>
		<p>Jobs you may be interested in</p>
		<p>About the job</p>
		<p>` + strings.Repeat("We are hiring engineers who enjoy distributed systems. ", 3) + `</p>
	</main></body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")

	assert.Equal(t, "text-extraction", f.Description.Strategy)
	assert.True(t, strings.HasPrefix(f.Description.Value, "About the job"))
	assert.NotContains(t, f.Description.Value, "interested in")
}

func TestLocate_DescriptionFromXPath(t *testing.T) {
	page := `<html><body>
		<main><p>Short main.</p></main>
		<article><p>` + strings.Repeat("Article body describing the role in detail. ", 4) + `</p></article>
	</body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")

	assert.Equal(t, "xpath", f.Description.Strategy)
	assert.Equal(t, 4, f.Description.Tier)
	assert.Contains(t, f.Description.Value, "Article body describing the role")
}

func TestLocate_FieldIndependence(t *testing.T) {
	page := `<html><body>
		<h1 class="top-card-layout__title">Data Engineer</h1>
		<a class="topcard__org-name-link" href="/company/initech">Initech</a>
	</body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")

	assert.Equal(t, "Data Engineer", f.Title.Value)
	assert.Equal(t, "Initech", f.CompanyName.Value)
	assert.True(t, f.DescriptionPlaceholder)
	assert.Equal(t, DescriptionPlaceholder, f.Description.Value)
	assert.False(t, f.Location.Found)
	assert.False(t, f.PostedAt.Found)
	assert.False(t, f.Applicants.Found)
	assert.Equal(t, types.ModeUnknown, f.Application.Mode)
}

func TestLocate_TitleHasNoFallback(t *testing.T) {
	page := `<html><head><title>Data Engineer | LinkedIn</title></head><body><h1>Data Engineer</h1></body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")
	assert.False(t, f.Title.Found)
	assert.False(t, f.CompanyName.Found)
	assert.False(t, f.CompanyURL.Found)
}

func TestLocate_MetadataKnownClassesAndSweep(t *testing.T) {
	page := `<html><body>
		<span class="posted-time-ago__text">1 month ago</span>
		<div><span>Sign in</span><span>Remote</span><span>Be an early applicant</span></div>
	</body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")

	assert.Equal(t, "1 month ago", f.PostedAt.Value)
	assert.Equal(t, "known-classes", f.PostedAt.Strategy)
	assert.Equal(t, "Remote", f.Location.Value)
	assert.Equal(t, "text-sweep", f.Location.Strategy)
	assert.Equal(t, "Be an early applicant", f.Applicants.Value)
	assert.Equal(t, "text-sweep", f.Applicants.Strategy)
}

func TestLocate_DateNotMistakenForLocation(t *testing.T) {
	page := `<html><body><div class="top-card-layout__second-subline">
		<span>Jan 15, 2024</span><span>Austin, TX</span>
	</div></body></html>`

	f := New(DefaultSelectors()).Locate(&fetch.Document{HTML: page}, "")
	assert.Equal(t, "Jan 15, 2024", f.PostedAt.Value)
	assert.Equal(t, "Austin, TX", f.Location.Value)
}

func TestApplication_PagePhrases(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mode       types.ApplicationMode
		confidence types.Confidence
	}{
		{"portuguese easy apply", `<p>Candidatura simplificada</p>`, types.ModeEasyApply, types.ConfidenceInferred},
		{"english easy apply", `<div>Use Easy Apply to send your profile</div>`, types.ModeEasyApply, types.ConfidenceInferred},
		{"generic apply", `<a href="https://careers.example.com">Apply on company website</a>`, types.ModeExternalApply, types.ConfidenceInferred},
		{"portuguese generic", `<span>Candidatar-se</span>`, types.ModeExternalApply, types.ConfidenceInferred},
		{"substring is not a phrase", `<p>Applying for jobs is hard</p>`, types.ModeUnknown, ""},
		{"script ignored", `<script>var s = "Easy Apply";</script><p>Nothing here</p>`, types.ModeUnknown, ""},
	}

	l := New(DefaultSelectors())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := l.Application(&fetch.Document{HTML: "<html><body>" + tt.body + "</body></html>"})
			assert.Equal(t, tt.mode, app.Mode)
			assert.Equal(t, tt.confidence, app.Confidence)
		})
	}
}

func TestApplication_AriaLabelFallback(t *testing.T) {
	page := `<html><body><button aria-label="Candidatura simplificada para Engenheiro"></button></body></html>`

	app := New(DefaultSelectors()).Application(&fetch.Document{HTML: page})
	assert.Equal(t, types.ModeEasyApply, app.Mode)
	assert.Equal(t, types.ConfidenceConfirmed, app.Confidence)
}

func TestClassifyApplyLabel(t *testing.T) {
	assert.Equal(t, types.ModeEasyApply, ClassifyApplyLabel("Easy Apply"))
	assert.Equal(t, types.ModeEasyApply, ClassifyApplyLabel("candidatura simplificada"))
	assert.Equal(t, types.ModeExternalApply, ClassifyApplyLabel("Apply"))
	assert.Equal(t, types.ModeExternalApply, ClassifyApplyLabel("Candidatar"))
	assert.Equal(t, types.ModeUnknown, ClassifyApplyLabel("Save"))
	assert.Equal(t, types.ModeUnknown, ClassifyApplyLabel(""))
}

func TestAnnotateLocale(t *testing.T) {
	external := types.Application{Mode: types.ModeExternalApply, Confidence: types.ConfidenceConfirmed}

	annotated := AnnotateLocale(external, "br")
	assert.Equal(t, types.ConfidenceUnconfirmed, annotated.Confidence)
	assert.Equal(t, UnconfirmedEasyApplyNote, annotated.Note)
	assert.Equal(t, types.ModeExternalApply, annotated.Mode)

	assert.Equal(t, external, AnnotateLocale(external, ""))
	assert.Equal(t, external, AnnotateLocale(external, "uk"))

	easy := types.Application{Mode: types.ModeEasyApply, Confidence: types.ConfidenceConfirmed}
	assert.Equal(t, easy, AnnotateLocale(easy, "br"))
}

func TestLoadSelectors(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)

	path := filepath.Join(t.TempDir(), "selectors.yaml")
	override := "title: h1.new-title\nsection_markers:\n  - Role overview\n"
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	sel, err = LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, "h1.new-title", sel.Title)
	assert.Equal(t, []string{"Role overview"}, sel.SectionMarkers)
	assert.Equal(t, DefaultSelectors().Company, sel.Company)

	_, err = LoadSelectors(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
