package clipjot

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// MinTitleLen is the shortest title treated as genuine.
const MinTitleLen = 10

var postURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?x\.com/`),
	regexp.MustCompile(`^https?://(www\.)?twitter\.com/`),
	regexp.MustCompile(`^https?://mobile\.twitter\.com/`),
	regexp.MustCompile(`^https?://m\.twitter\.com/`),
}

var placeholderPatterns = []*regexp.Regexp{
	// 18h, 5m, 3 d, now
	regexp.MustCompile(`(?i)^(?:\d+\s*(?:s|m|min|h|d|w|mo|y)|now)$`),
	// Jan 22, Sep. 3, March 14, 2025
	regexp.MustCompile(`(?i)^(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:,\s*\d{4})?$`),
	// 3:01 PM · Jan 23, 2026
	regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*[ap]\.?m\.?\s*·\s*[a-z]{3,9}\.?\s+\d{1,2},\s*\d{4}$`),
	// bare URL
	regexp.MustCompile(`(?i)^(?:https?://|www\.)\S+$`),
	regexp.MustCompile(`(?i)^(?:x|twitter)\.com/\S*$`),
}

// IsPostURL reports whether url is on one of the platform's hosts.
func IsPostURL(url string) bool {
	for _, p := range postURLPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// IsPlaceholderTitle reports whether title is auto-generated noise such as a
// relative time, a short date, a timestamp, or a URL.
func IsPlaceholderTitle(title, url string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return true
	}
	if url != "" && strings.EqualFold(t, strings.TrimSpace(url)) {
		return true
	}
	for _, p := range placeholderPatterns {
		if p.MatchString(t) {
			return true
		}
	}
	return utf8.RuneCountInString(t) < MinTitleLen
}

// Needs describes which fields of a bookmark should be written.
type Needs struct {
	Title          bool
	Comment        bool
	ReplacingTitle bool
	ExistingTitle  string
}

// Any reports whether anything needs writing.
func (n Needs) Any() bool {
	return n.Title || n.Comment
}

// NeedsEnrichment inspects a bookmark's current title and comment. A genuine
// comment is never replaced.
func NeedsEnrichment(b xfix.Bookmark) Needs {
	title := b.TitleValue()
	n := Needs{ExistingTitle: title}
	if strings.TrimSpace(title) == "" {
		n.Title = true
	} else if IsPlaceholderTitle(title, b.URL) {
		n.Title = true
		n.ReplacingTitle = true
	}
	n.Comment = strings.TrimSpace(b.CommentValue()) == ""
	return n
}

// Eligible filters a sync batch to post bookmarks that still need work,
// keeping batch order.
func Eligible(bookmarks []xfix.Bookmark) []xfix.Bookmark {
	out := make([]xfix.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if IsPostURL(b.URL) && NeedsEnrichment(b).Any() {
			out = append(out, b)
		}
	}
	return out
}
