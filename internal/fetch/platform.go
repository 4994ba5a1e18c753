package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

const (
	// PlatformLinkedIn is LinkedIn Jobs
	PlatformLinkedIn Platform = "linkedin"
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// linkedInBase is the canonical origin for LinkedIn job and company links.
const linkedInBase = "https://www.linkedin.com"

var (
	jobViewPath = regexp.MustCompile(`/jobs/view/(?:[^/?#]*?-)?(\d+)(?:[/?#]|$)`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
)

// trackingParams are dropped during canonicalization.
var trackingParams = map[string]bool{
	"gclid": true, "fbclid": true, "mc_cid": true, "mc_eid": true,
	"trk": true, "trkinfo": true, "refid": true, "trackingid": true,
	"lipi": true, "midtoken": true, "midsig": true, "eba": true,
	"ebp": true, "recommendedflavor": true, "position": true, "pagenum": true,
}

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case isLinkedInHost(host):
		return PlatformLinkedIn
	case strings.HasSuffix(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.HasSuffix(host, "lever.co"):
		return PlatformLever
	default:
		return PlatformUnknown
	}
}

func isLinkedInHost(host string) bool {
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

func parseLoose(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL has no host: %q", raw)
	}
	return u, nil
}

// JobID returns the numeric LinkedIn job id carried by a URL, either in a
// /jobs/view/ path (with or without a title slug) or a currentJobId parameter.
func JobID(raw string) (string, bool) {
	u, err := parseLoose(raw)
	if err != nil || !isLinkedInHost(strings.ToLower(u.Hostname())) {
		return "", false
	}
	if m := jobViewPath.FindStringSubmatch(u.EscapedPath() + "/"); m != nil {
		return m[1], true
	}
	if id := u.Query().Get("currentJobId"); digitsOnly.MatchString(id) {
		return id, true
	}
	return "", false
}

// NormalizeURL converts a job URL to its canonical form. LinkedIn job URLs in
// any shape become https://www.linkedin.com/jobs/view/<id>/; other URLs get a
// lower-case host, no fragment and no tracking parameters. Normalizing an
// already-normalized URL returns it unchanged.
func NormalizeURL(raw string) (string, error) {
	if id, ok := JobID(raw); ok {
		return linkedInBase + "/jobs/view/" + id + "/", nil
	}
	u, err := parseLoose(raw)
	if err != nil {
		return "", err
	}
	return canonicalize(u), nil
}

func canonicalize(u *url.URL) string {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// AbsoluteLinkedInURL resolves a possibly relative LinkedIn href against the
// canonical origin and strips tracking parameters.
func AbsoluteLinkedInURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, _ := url.Parse(linkedInBase)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return canonicalize(base.ResolveReference(ref))
}

// nonEnglishLocales are LinkedIn country subdomains whose default UI language
// is not English.
var nonEnglishLocales = map[string]bool{
	"br": true, "pt": true, "es": true, "mx": true, "ar": true, "cl": true, "co": true, "pe": true,
	"fr": true, "be": true, "de": true, "at": true, "ch": true, "it": true, "nl": true,
	"jp": true, "kr": true, "cn": true, "tw": true, "tr": true, "pl": true, "se": true,
	"dk": true, "no": true, "fi": true, "cz": true, "ro": true, "ru": true, "id": true,
	"th": true, "vn": true,
}

// LocaleFromURL returns the country subdomain of a LinkedIn URL ("br" for
// br.linkedin.com), or "" for www and non-LinkedIn hosts.
func LocaleFromURL(raw string) string {
	u, err := parseLoose(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !isLinkedInHost(host) || host == "linkedin.com" {
		return ""
	}
	sub := strings.TrimSuffix(host, ".linkedin.com")
	if sub == "www" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

// IsNonEnglishLocale reports whether a locale from LocaleFromURL defaults to a
// language other than English.
func IsNonEnglishLocale(locale string) bool {
	return nonEnglishLocales[locale]
}
