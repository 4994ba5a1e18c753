// Package textextract turns HTML into readable plain text. Paragraph and
// heading boundaries become blank lines; navigation and consent boilerplate
// is skipped.
package textextract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Document is the readable content of a page.
type Document struct {
	Title string
	Text  string
}

var contentRoots = []string{"main", "article", "body"}

// FromHTML extracts readable text from a page, preferring <main> or <article>
// and falling back to <body>.
func FromHTML(input string) Document {
	root, err := html.Parse(strings.NewReader(input))
	if err != nil || root == nil {
		return Document{}
	}

	var content *html.Node
	for _, tag := range contentRoots {
		if content = findFirst(root, tag); content != nil {
			break
		}
	}

	doc := Document{Title: title(root)}
	if content != nil {
		doc.Text = NodeText(content)
	}
	return doc
}

// NodeText returns the readable text below n with block boundaries preserved.
func NodeText(n *html.Node) string {
	var b strings.Builder
	collect(&b, n)
	return CleanText(b.String())
}

func title(root *html.Node) string {
	head := findFirst(root, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(t.FirstChild.Data)
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Source newlines are plain whitespace in HTML.
var sourceWhitespace = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

func collect(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(sourceWhitespace.Replace(n.Data))
		return
	}
	if n.Type == html.ElementNode {
		if isBoilerplate(n) {
			return
		}
		switch n.Data {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "svg", "button", "form":
			return
		case "br":
			b.WriteString("\n")
			return
		case "p", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "tr":
			lineBreak(b)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(b, c)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol":
			b.WriteString("\n\n")
		}
	}
}

func lineBreak(b *strings.Builder) {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
}

var boilerplateMarkers = []string{"cookie", "consent", "gdpr", "sign-in-modal", "contextual-sign-in"}

func isBoilerplate(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "id" && attr.Key != "class" && attr.Key != "role" {
			continue
		}
		val := strings.ToLower(attr.Val)
		for _, marker := range boilerplateMarkers {
			if strings.Contains(val, marker) {
				return true
			}
		}
	}
	return false
}

var (
	spaceRun      = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
	lineEndingsCR = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// CleanText normalizes line endings, collapses runs of spaces within each
// line and keeps at most one blank line between paragraphs.
func CleanText(content string) string {
	if content == "" {
		return ""
	}
	content = lineEndingsCR.Replace(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}

	result := blankLineRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}
