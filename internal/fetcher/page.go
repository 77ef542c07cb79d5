package fetcher

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// minPageTextLen is the shortest meta text accepted as post content.
const minPageTextLen = 11

var titlePrefixes = []string{" on X: ", " on Twitter: "}

// ContentFromPage extracts post content from a page's Open Graph tags. The
// description is preferred; the title is used with its "Author on X:"
// prefix removed. Short values are rejected as noise.
func ContentFromPage(strategy string, body io.Reader, target Target) (xfix.Content, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, strategy, "invalid html", err)
	}

	text := metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
	if !usable(text) {
		text = stripTitlePrefix(metaContent(doc, `meta[property="og:title"]`))
	}
	if !usable(text) {
		return xfix.Content{}, xfix.NewFetchError(xfix.KindParse, strategy, "no post content in page meta", nil)
	}

	author := target.Author
	if author == "" {
		author = "unknown"
	}
	return xfix.Content{Author: author, Text: text, SourceURL: target.URL}, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func stripTitlePrefix(title string) string {
	for _, p := range titlePrefixes {
		if _, rest, ok := strings.Cut(title, p); ok {
			return strings.TrimSpace(rest)
		}
	}
	return title
}

func usable(text string) bool {
	return utf8.RuneCountInString(text) >= minPageTextLen
}
