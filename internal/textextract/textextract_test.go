package textextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

func TestFromHTML_PrefersMain(t *testing.T) {
	page := `<html><head><title> Senior Engineer </title></head><body>
		<nav>Jobs People Learning</nav>
		<main>
			<h2>About the job</h2>
			<p>We build   things.</p>
			<ul><li>Go</li><li>Postgres</li></ul>
		</main>
		<footer>Copyright</footer>
	</body></html>`

	doc := FromHTML(page)

	assert.Equal(t, "Senior Engineer", doc.Title)
	assert.Contains(t, doc.Text, "About the job")
	assert.Contains(t, doc.Text, "We build things.")
	assert.Contains(t, doc.Text, "Go\nPostgres")
	assert.NotContains(t, doc.Text, "Jobs People")
	assert.NotContains(t, doc.Text, "Copyright")
}

func TestFromHTML_FallsBackToBody(t *testing.T) {
	doc := FromHTML(`<html><body><p>Only body text</p></body></html>`)
	assert.Equal(t, "Only body text", doc.Text)
	assert.Empty(t, doc.Title)
}

func TestFromHTML_SkipsBoilerplate(t *testing.T) {
	page := `<body>
		<div class="artdeco-global-alert cookie-banner">We use cookies</div>
		<div class="contextual-sign-in-modal">Sign in to view more jobs</div>
		<script>var x = 1;</script>
		<p>Real content</p>
	</body>`

	doc := FromHTML(page)
	assert.Equal(t, "Real content", doc.Text)
}

func TestNodeText_ParagraphBoundaries(t *testing.T) {
	root, err := html.Parse(strings.NewReader(`<div id="d"><p>First</p><p>Second<br>line</p></div>`))
	assert.NoError(t, err)

	text := NodeText(root)
	assert.Equal(t, "First\n\nSecond\nline", text)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"collapse spaces", "a    b\t\tc", "a b c"},
		{"nbsp", "a  b", "a b"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"blank lines with spaces", "a\n  \n \n\nb", "a\n\nb"},
		{"trim", "\n\n  a  \n\n", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}
