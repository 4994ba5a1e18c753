// Package normalize cleans located field text and resolves posting-date
// phrases to calendar dates.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ParagraphBreak separates paragraphs in a normalized description. The
// presentation layer renders it as HTML line breaks.
const ParagraphBreak = "\n\n"

// Ellipsis marks truncated text.
const Ellipsis = "..."

var (
	invisible      = strings.NewReplacer("\u00a0", " ", "\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
	brTag          = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphSplit = regexp.MustCompile(`\n[ \t\f\v\p{Zs}]*\n\s*`)
)

// clean expects text already decoded by the HTML parser, so entity-looking
// sequences in it are literal.
func clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = invisible.Replace(s)
	return norm.NFC.String(s)
}

// Text collapses every run of whitespace, including newlines, to a single
// space. Used for fields shown in a table cell.
func Text(s string) string {
	return strings.Join(strings.Fields(clean(s)), " ")
}

// Description normalizes description text while keeping paragraph boundaries:
// whitespace inside a paragraph collapses to single spaces, and paragraphs are
// joined with ParagraphBreak. Text carrying <br> tags is raw markup, so the
// tags become newlines and its entities are decoded.
func Description(s string) string {
	s = clean(s)
	if brTag.MatchString(s) {
		s = html.UnescapeString(brTag.ReplaceAllString(s, "\n"))
	}
	s = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)

	parts := paragraphSplit.Split(s, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, ParagraphBreak)
}

// Truncate shortens s to at most max characters, ending in exactly one
// Ellipsis when anything was cut. It never splits a multi-byte character.
// A max of zero or less disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	keep := max - utf8.RuneCountInString(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	cut := strings.TrimRightFunc(string(runes[:keep]), func(r rune) bool {
		return r == '.' || r == '\u2026' || r == ' ' || r == '\n'
	})
	return cut + Ellipsis
}
