package extractor

import (
	"strings"

	"github.com/jonathan/job-extractor/internal/fetch"
)

// ParseURLList turns free text into the list of URLs to process: one per
// line, normalized, blank lines and duplicates dropped (first occurrence
// wins), and anything in exclude removed. Lines that do not parse as URLs are
// kept verbatim so they still get an error record.
func ParseURLList(text string, exclude []string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if key := urlKey(e); key != "" {
			skip[key] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		key := urlKey(line)
		if key == "" {
			continue
		}
		if _, ok := skip[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		urls = append(urls, key)
	}
	return urls
}

func urlKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := fetch.NormalizeURL(raw); err == nil {
		return u
	}
	return raw
}
