package enrich

import "fmt"

const promptTemplate = `Given the following tweet content, generate:
1. A brief one-sentence title (max 100 characters) that captures the main topic
2. A 3-5 sentence summary of the content

Tweet by @%s:
%s

Respond in this exact format:
TITLE: <your title here>
SUMMARY: <your summary here>`

// BuildPrompt renders the generation prompt for a post.
func BuildPrompt(author, text string) string {
	return fmt.Sprintf(promptTemplate, author, text)
}
