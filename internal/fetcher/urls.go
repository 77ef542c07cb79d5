package fetcher

import (
	"regexp"
	"strings"
)

var (
	postIDPattern = regexp.MustCompile(`/status/(\d+)`)
	authorPattern = regexp.MustCompile(`(?:x\.com|twitter\.com)/([^/]+)/status`)
)

// ExtractPostID returns the numeric post id following /status/.
func ExtractPostID(rawURL string) (string, bool) {
	m := postIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractAuthor returns the handle preceding /status/, or "" when absent.
func ExtractAuthor(rawURL string) string {
	m := authorPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// CanonicalURL rewrites x.com hosts to twitter.com, the domain the embed
// endpoint expects.
func CanonicalURL(rawURL string) string {
	return strings.ReplaceAll(rawURL, "x.com", "twitter.com")
}
