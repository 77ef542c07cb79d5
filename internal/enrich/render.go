package enrich

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/xfix/internal/xfix"
)

// RenderComment builds the bookmark comment: the summary followed by the
// post quoted as markdown.
func RenderComment(summary string, content xfix.Content) string {
	var b strings.Builder
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString(RenderPost(content))
	return b.String()
}

// RenderPost formats post content as a markdown block quote with an author
// line and, when known, an engagement line.
func RenderPost(content xfix.Content) string {
	var b strings.Builder

	author := "@" + content.Author
	if content.AuthorDisplayName != "" {
		author = fmt.Sprintf("**%s** (@%s)", content.AuthorDisplayName, content.Author)
	}
	b.WriteString("> ")
	b.WriteString(author)
	b.WriteString("\n>\n")
	for _, line := range strings.Split(strings.TrimSpace(content.Text), "\n") {
		b.WriteString(">")
		if line != "" {
			b.WriteString(" ")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	if stats := engagement(content); stats != "" {
		b.WriteString(">\n> ")
		b.WriteString(stats)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func engagement(c xfix.Content) string {
	var parts []string
	add := func(n *int, label string) {
		if n != nil {
			parts = append(parts, fmt.Sprintf("%s %s", formatCount(*n), label))
		}
	}
	add(c.Likes, "likes")
	add(c.Reposts, "reposts")
	add(c.Replies, "replies")
	add(c.Views, "views")
	return strings.Join(parts, " · ")
}

func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
