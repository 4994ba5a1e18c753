package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-extractor/internal/types"
)

// MalformedDateError reports posting-date text that matched no known pattern.
type MalformedDateError struct {
	Raw string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("unrecognized posting date %q", e.Raw)
}

type unit int

const (
	unitMinute unit = iota
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

var unitNames = map[string]unit{
	"m": unitMinute, "min": unitMinute, "mins": unitMinute, "minute": unitMinute, "minutes": unitMinute,
	"minuto": unitMinute, "minutos": unitMinute,
	"h": unitHour, "hr": unitHour, "hrs": unitHour, "hour": unitHour, "hours": unitHour,
	"hora": unitHour, "horas": unitHour,
	"d": unitDay, "day": unitDay, "days": unitDay, "dia": unitDay, "dias": unitDay,
	"w": unitWeek, "wk": unitWeek, "week": unitWeek, "weeks": unitWeek, "semana": unitWeek, "semanas": unitWeek,
	"mo": unitMonth, "mos": unitMonth, "month": unitMonth, "months": unitMonth,
	"mês": unitMonth, "mes": unitMonth, "meses": unitMonth,
	"y": unitYear, "yr": unitYear, "yrs": unitYear, "year": unitYear, "years": unitYear,
	"ano": unitYear, "anos": unitYear,
}

var quantityNames = map[string]int{"a": 1, "an": 1, "one": 1, "um": 1, "uma": 1}

const unitAlternation = `minutes?|mins?|hours?|hrs?|days?|weeks?|wk|months?|mos?|years?|yrs?|minutos?|horas?|dias?|semanas?|m[eê]s|meses|anos?|m|h|d|w|y`

var (
	englishAgo    = regexp.MustCompile(`(?i)\b(\d+|an?|one)\+?\s*(` + unitAlternation + `)\s+ago\b`)
	portugueseHa  = regexp.MustCompile(`(?i)(?:^|\s)h[áa]\s+(?:mais\s+de\s+)?(\d+|uma?)\+?\s+(` + unitAlternation + `)(?:\s|$|[.,])`)
	portugueseAtr = regexp.MustCompile(`(?i)\b(\d+|uma?)\+?\s+(` + unitAlternation + `)\s+atr[áa]s`)
	dayWords      = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(today|just now|yesterday|hoje|agora|ontem)(?:$|[^\p{L}])`)
	slashDate     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDate       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	ptLongDate    = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(\p{L}+)\.?\s+de\s+(\d{4})\b`)
)

var absoluteLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2006",
	"Jan 2006",
}

var portugueseMonths = map[string]time.Month{
	"janeiro": time.January, "jan": time.January,
	"fevereiro": time.February, "fev": time.February,
	"março": time.March, "marco": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"maio": time.May, "mai": time.May,
	"junho": time.June, "jun": time.June,
	"julho": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"setembro": time.September, "set": time.September,
	"outubro": time.October, "out": time.October,
	"novembro": time.November, "nov": time.November,
	"dezembro": time.December, "dez": time.December,
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func quantity(s string) (int, bool) {
	if n, ok := quantityNames[strings.ToLower(s)]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func offset(ref time.Time, n int, u unit) time.Time {
	switch u {
	case unitMinute:
		return ref.Add(-time.Duration(n) * time.Minute)
	case unitHour:
		return ref.Add(-time.Duration(n) * time.Hour)
	case unitDay:
		return ref.AddDate(0, 0, -n)
	case unitWeek:
		return ref.AddDate(0, 0, -7*n)
	case unitMonth:
		return ref.AddDate(0, -n, 0)
	default:
		return ref.AddDate(-n, 0, 0)
	}
}

func relative(m []string, ref time.Time) (time.Time, bool) {
	if m == nil {
		return time.Time{}, false
	}
	n, ok := quantity(m[1])
	if !ok {
		return time.Time{}, false
	}
	u, ok := unitNames[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	return offset(ref, n, u), true
}

// ParseDate resolves a posting-date phrase against ref, the moment the page
// was retrieved. Patterns are tried in order: relative "N units ago" in
// English and Portuguese, day words, then absolute dates. The result is a
// calendar date in ref's location.
func ParseDate(raw string, ref time.Time) (time.Time, error) {
	text := strings.TrimSpace(Text(raw))
	if text == "" {
		return time.Time{}, &MalformedDateError{Raw: raw}
	}

	for _, re := range []*regexp.Regexp{englishAgo, portugueseHa, portugueseAtr} {
		if t, ok := relative(re.FindStringSubmatch(text), ref); ok {
			return calendarDate(t), nil
		}
	}

	if m := dayWords.FindStringSubmatch(text); m != nil {
		switch strings.ToLower(m[1]) {
		case "yesterday", "ontem":
			return calendarDate(ref.AddDate(0, 0, -1)), nil
		default:
			return calendarDate(ref), nil
		}
	}

	if t, ok := absolute(text, ref.Location()); ok {
		return t, nil
	}
	return time.Time{}, &MalformedDateError{Raw: raw}
}

func absolute(text string, loc *time.Location) (time.Time, bool) {
	if m := isoDate.FindStringSubmatch(text); m != nil {
		if t, err := time.ParseInLocation("2006-01-02", m[0], loc); err == nil {
			return t, true
		}
	}

	if m := slashDate.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		month, day := a, b
		if a > 12 {
			month, day = b, a
		}
		if t, ok := validDate(year, month, day, loc); ok {
			return t, true
		}
	}

	if m := ptLongDate.FindStringSubmatch(text); m != nil {
		if month, ok := portugueseMonths[strings.ToLower(m[2])]; ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			if t, ok := validDate(year, int(month), day, loc); ok {
				return t, true
			}
		}
	}

	candidate := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "Posted on "), "Posted "))
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, candidate, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ResolveDate is ParseDate folded into the record's date states: empty text is
// NotFound and unrecognized text is Unresolvable. It never defaults to today.
func ResolveDate(raw string, ref time.Time) types.PostedDate {
	if strings.TrimSpace(raw) == "" {
		return types.PostedDate{}
	}
	t, err := ParseDate(raw, ref)
	if err != nil {
		return types.UnresolvableDate()
	}
	return types.ResolvedDate(t)
}
