package locate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/textextract"
)

// MinDescriptionLength is the shortest description text, in characters, a
// strategy may return before the chain moves on.
const MinDescriptionLength = 100

// sweepMaxLength bounds the text nodes considered by the page sweep.
const sweepMaxLength = 80

var errUnparseable = errors.New("document could not be parsed")

func staticDoc(doc *fetch.Document) (*goquery.Document, error) {
	q := doc.Static()
	if q == nil {
		return nil, errUnparseable
	}
	return q, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= MinDescriptionLength
}

// selectorText returns the text of the first element matching selector.
func selectorText(selector string) Strategy {
	return NewStrategy("selector", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		return collapse(q.Find(selector).First().Text()), nil
	})
}

// selectorHref returns the absolute link of the first element matching selector.
func selectorHref(selector string) Strategy {
	return NewStrategy("selector", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		href, ok := q.Find(selector).First().Attr("href")
		if !ok {
			return "", nil
		}
		return fetch.AbsoluteLinkedInURL(href), nil
	})
}

// containerText returns the readable text of the first container that holds
// a description of usable length.
func containerText(q *goquery.Document, containers []string) string {
	for _, selector := range containers {
		s := q.Find(selector).First()
		if s.Length() == 0 {
			continue
		}
		if text := textextract.NodeText(s.Nodes[0]); longEnough(text) {
			return text
		}
	}
	return ""
}

func renderedContainer(containers []string) Strategy {
	return NewStrategy("rendered-dom", func(doc *fetch.Document) (string, error) {
		q := doc.DOM()
		if q == nil {
			return "", nil
		}
		return containerText(q, containers), nil
	})
}

func staticContainer(containers []string) Strategy {
	return NewStrategy("static-html", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		return containerText(q, containers), nil
	})
}

// markerPattern matches any of the section markers, case-insensitively.
func markerPattern(markers []string) *regexp.Regexp {
	quoted := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			quoted = append(quoted, regexp.QuoteMeta(m))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// TrimToMarker drops everything before the first section marker. Text without
// a marker is returned unchanged.
func TrimToMarker(text string, pattern *regexp.Regexp) string {
	if pattern == nil {
		return text
	}
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return strings.TrimSpace(text[loc[0]:])
}

func textExtraction(markers []string) Strategy {
	pattern := markerPattern(markers)
	return NewStrategy("text-extraction", func(doc *fetch.Document) (string, error) {
		text := doc.Text
		if text == "" {
			text = textextract.FromHTML(doc.HTML).Text
		}
		return TrimToMarker(text, pattern), nil
	})
}

// xpathBlocks tries each expression in turn and returns the joined text of the
// first one that yields a block of usable length.
func xpathBlocks(exprs []string) Strategy {
	return NewStrategy("xpath", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		root := q.Nodes[0]

		var exprErrs []error
		for _, expr := range exprs {
			nodes, err := htmlquery.QueryAll(root, expr)
			if err != nil {
				exprErrs = append(exprErrs, err)
				continue
			}
			if text := joinNodes(nodes); longEnough(text) {
				return text, nil
			}
		}
		return "", errors.Join(exprErrs...)
	})
}

func joinNodes(nodes []*html.Node) string {
	blocks := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if text := textextract.NodeText(n); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// metadataItems returns the bullet items below a top-card container, leaving
// out the company name and known promotional labels.
func metadataItems(container *goquery.Selection, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e = strings.ToLower(collapse(e)); e != "" {
			skip[e] = true
		}
	}

	var items []string
	add := func(text string) {
		for _, item := range SplitItems(text) {
			if !skip[strings.ToLower(item)] {
				items = append(items, item)
			}
		}
	}

	container.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() == 0 {
			add(el.Text())
		}
	})
	if len(items) == 0 {
		add(container.Text())
	}
	return items
}

func topCardItems(q *goquery.Document, sel Selectors) []string {
	container := q.Find(sel.MetadataContainer).First()
	if container.Length() == 0 {
		return nil
	}
	exclude := append([]string{q.Find(sel.Company).First().Text()}, sel.MetadataNoise...)
	return metadataItems(container, exclude)
}

func topCard(sel Selectors, kind Kind) Strategy {
	return NewStrategy("top-card", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		for _, item := range topCardItems(q, sel) {
			if Classify(item) == kind {
				return item, nil
			}
		}
		return "", nil
	})
}

func knownClasses(classes []string, kind Kind) Strategy {
	return NewStrategy("known-classes", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		for _, class := range classes {
			var found string
			q.Find(class).EachWithBreak(func(_ int, el *goquery.Selection) bool {
				for _, item := range SplitItems(el.Text()) {
					if Classify(item) == kind {
						found = item
						return false
					}
				}
				return true
			})
			if found != "" {
				return found, nil
			}
		}
		return "", nil
	})
}

// sweepItems collects every short visible text on the page, in document order.
func sweepItems(q *goquery.Document) []string {
	var items []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := collapse(n.Data); text != "" && utf8.RuneCountInString(text) <= sweepMaxLength {
				items = append(items, SplitItems(text)...)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range q.Nodes {
		walk(n)
	}
	return items
}

func textSweep(match func(string) bool) Strategy {
	return NewStrategy("text-sweep", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		for _, item := range sweepItems(q) {
			if match(item) {
				return item, nil
			}
		}
		return "", nil
	})
}

func applyButton(expr string) Strategy {
	return NewStrategy("apply-button", func(doc *fetch.Document) (string, error) {
		if expr == "" {
			return "", nil
		}
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		nodes, err := htmlquery.QueryAll(q.Nodes[0], expr)
		if err != nil {
			return "", err
		}
		for _, n := range nodes {
			if label := collapse(htmlquery.InnerText(n)); label != "" {
				return label, nil
			}
		}
		return "", nil
	})
}

func applyAlternates(selectors []string, classify func(string) bool) Strategy {
	return NewStrategy("apply-alternates", func(doc *fetch.Document) (string, error) {
		q, err := staticDoc(doc)
		if err != nil {
			return "", err
		}
		for _, selector := range selectors {
			var found string
			q.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
				label := collapse(el.Text())
				if label == "" {
					label = collapse(el.AttrOr("aria-label", ""))
				}
				if label != "" && classify(label) {
					found = label
					return false
				}
				return true
			})
			if found != "" {
				return found, nil
			}
		}
		return "", nil
	})
}

// visibleText is the page text without script and style content.
func visibleText(q *goquery.Document) string {
	body := q.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return collapse(body.Text())
}

func pagePhrases(m *applyMatcher) Strategy {
	return NewStrategy("page-phrases", func(doc *fetch.Document) (string, error) {
		text := doc.Text
		if text == "" {
			q, err := staticDoc(doc)
			if err != nil {
				return "", err
			}
			text = visibleText(q)
		}
		return m.phraseIn(text), nil
	})
}
