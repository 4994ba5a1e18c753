package locate

import (
	"regexp"
	"strings"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/types"
)

// UnconfirmedEasyApplyNote annotates external-apply results on locales where
// the site under-reports Easy Apply.
const UnconfirmedEasyApplyNote = "possibly EasyApply, unconfirmed"

// applyMatcher holds the compiled phrase patterns for apply detection.
type applyMatcher struct {
	easy    *regexp.Regexp
	generic *regexp.Regexp
	easyTag string
	applTag string
}

// phrasePattern matches any phrase as a whole word, case-insensitively.
func phrasePattern(phrases []string) *regexp.Regexp {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

func newApplyMatcher(sel Selectors) *applyMatcher {
	m := &applyMatcher{
		easy:    phrasePattern(sel.EasyApplyPhrases),
		generic: phrasePattern(sel.ApplyPhrases),
		easyTag: "Easy Apply",
		applTag: "Apply",
	}
	if len(sel.EasyApplyPhrases) > 0 {
		m.easyTag = sel.EasyApplyPhrases[0]
	}
	if len(sel.ApplyPhrases) > 0 {
		m.applTag = sel.ApplyPhrases[0]
	}
	return m
}

func (m *applyMatcher) mode(label string) types.ApplicationMode {
	switch {
	case m.easy != nil && m.easy.MatchString(label):
		return types.ModeEasyApply
	case m.generic != nil && m.generic.MatchString(label):
		return types.ModeExternalApply
	default:
		return types.ModeUnknown
	}
}

// phraseIn returns the canonical label for the strongest phrase found in text.
func (m *applyMatcher) phraseIn(text string) string {
	switch m.mode(text) {
	case types.ModeEasyApply:
		return m.easyTag
	case types.ModeExternalApply:
		return m.applTag
	default:
		return ""
	}
}

// ClassifyApplyLabel maps an apply-button label to an application mode using
// the default phrase lists.
func ClassifyApplyLabel(label string) types.ApplicationMode {
	return defaultApplyMatcher.mode(label)
}

var defaultApplyMatcher = newApplyMatcher(DefaultSelectors())

// AnnotateLocale downgrades an external-apply result on a non-English locale
// to an unconfirmed signal, since Easy Apply may simply not have been detected.
func AnnotateLocale(app types.Application, locale string) types.Application {
	if app.Mode == types.ModeExternalApply && fetch.IsNonEnglishLocale(locale) {
		app.Confidence = types.ConfidenceUnconfirmed
		app.Note = UnconfirmedEasyApplyNote
	}
	return app
}
