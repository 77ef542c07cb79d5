package enrich

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// MaxTitleLen is the longest title written back.
const MaxTitleLen = 100

var (
	titlePattern   = regexp.MustCompile(`(?i)TITLE:\s*(.+?)(?:\n|$)`)
	summaryPattern = regexp.MustCompile(`(?is)SUMMARY:\s*(.+)`)
	titleLine      = regexp.MustCompile(`(?im)^[ \t]*TITLE:`)
)

// ParseResponse extracts the TITLE and SUMMARY lines. A missing label leaves
// that field nil. The summary runs to the end of the reply, or to a TITLE line
// that follows it.
func ParseResponse(text string) xfix.Enrichment {
	var out xfix.Enrichment

	if m := titlePattern.FindStringSubmatch(text); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			title = truncate(title, MaxTitleLen)
			out.Title = &title
		}
	}
	if m := summaryPattern.FindStringSubmatch(text); m != nil {
		body := m[1]
		if loc := titleLine.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
		if summary := strings.TrimSpace(body); summary != "" {
			out.Summary = &summary
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
