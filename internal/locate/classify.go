package locate

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind is what a short metadata text is judged to be.
type Kind int

const (
	// KindLocation is the default classification
	KindLocation Kind = iota
	// KindDate is a posting-date phrase
	KindDate
	// KindApplicants is an applicant-count phrase
	KindApplicants
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindApplicants:
		return "applicants"
	default:
		return "location"
	}
}

var monthTokens = tokenSet(
	"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"january", "february", "march", "april", "june", "july", "august", "september", "october", "november", "december",
	"fev", "abr", "mai", "ago", "set", "out", "dez",
	"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
)

var relativeTokens = tokenSet("ago", "atrás", "today", "yesterday", "hoje", "ontem")

var unitTokens = tokenSet(
	"minute", "minutes", "min", "mins", "hour", "hours", "hr", "hrs", "day", "days", "week", "weeks", "month", "months", "year", "years",
	"minuto", "minutos", "hora", "horas", "dia", "dias", "semana", "semanas", "mês", "mes", "meses", "ano", "anos",
)

var numericDate = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`)

var quantityWords = tokenSet("a", "an", "one", "um", "uma", "há")

var applicantTokens = tokenSet(
	"applicant", "applicants", "candidate", "candidates", "candidato", "candidatos",
	"candidatura", "candidaturas", "clicked", "clicaram",
)

var placeTokens = tokenSet("remote", "remoto", "hybrid", "híbrido", "hibrido", "on-site", "onsite", "presencial", "area", "region", "região", "metropolitan")

func tokenSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// tokens splits s into lower-case words; hyphenated words stay whole.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// IsDateLike reports whether s reads as a posting date: a relative phrase
// ("3 days ago", "há 2 semanas", "yesterday") or a month name with a number.
func IsDateLike(s string) bool {
	toks := tokens(s)
	month := false
	for i, tok := range toks {
		switch {
		case relativeTokens[tok]:
			return true
		case monthTokens[tok]:
			month = true
		case unitTokens[tok] && i > 0 && (hasDigit(toks[i-1]) || quantityWords[toks[i-1]]):
			return !IsApplicantCount(s)
		}
	}
	return (month && hasDigit(s)) || numericDate.MatchString(s)
}

// IsApplicantCount reports whether s reads as an applicant count
// ("Over 200 applicants", "Be an early applicant"). A count word alone, as
// in the "Candidatura simplificada" button, is not enough.
func IsApplicantCount(s string) bool {
	counted := hasDigit(s)
	mentioned := false
	for _, tok := range tokens(s) {
		switch {
		case applicantTokens[tok]:
			mentioned = true
		case tok == "early" || tok == "first" || tok == "primeiros":
			counted = true
		}
	}
	return mentioned && counted
}

// Classify applies the predicates in order: date, then applicant count, and
// location by default.
func Classify(s string) Kind {
	switch {
	case IsDateLike(s):
		return KindDate
	case IsApplicantCount(s):
		return KindApplicants
	default:
		return KindLocation
	}
}

// LooksLikeLocation is the stricter check used when sweeping arbitrary page
// text: a short comma-separated place name or a work-arrangement keyword.
func LooksLikeLocation(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 60 || Classify(s) != KindLocation {
		return false
	}
	for _, tok := range tokens(s) {
		if placeTokens[tok] {
			return true
		}
	}
	if hasDigit(s) || !strings.Contains(s, ",") {
		return false
	}
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return false
	}
	for _, part := range parts {
		words := strings.Fields(part)
		if len(words) == 0 || len(words) > 4 {
			return false
		}
		first := []rune(words[0])[0]
		if !unicode.IsUpper(first) {
			return false
		}
	}
	return true
}

// SplitItems breaks a metadata line into its bullet-separated items.
func SplitItems(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '·' || r == '•' })
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			items = append(items, p)
		}
	}
	return items
}
