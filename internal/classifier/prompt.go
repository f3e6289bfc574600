package classifier

import (
	"fmt"
	"strings"
)

const defaultMaxTokens = 2000

const systemPrompt = `You rate social media posts about cryptocurrency projects for their importance to investors and the project community. You answer with JSON only.`

func buildPrompt(req Request) string {
	var sb strings.Builder

	name := strings.TrimSpace(req.EntityName)
	symbol := strings.TrimSpace(req.Symbol)
	if symbol != "" {
		fmt.Fprintf(&sb, "Analyze these posts about the project %s (%s):\n\n", name, symbol)
	} else {
		fmt.Fprintf(&sb, "Analyze these posts about the project %s:\n\n", name)
	}

	for i, item := range req.Items {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Post %d: %q [Official: %t]", i, item.Text, item.Official)
	}

	sb.WriteString(`

For EACH post return one object in a JSON array with:
- index: the post number (0-based), every number exactly once
- importance_score (0-10):
  * 9-10: major announcements (listing on a major exchange, large partnership, mainnet or protocol launch)
  * 7-8: significant updates (new features, important milestones, major community events)
  * 5-6: routine updates (minor features, community activity, general news)
  * 3-4: low value chatter (reposts, general commentary, passing mentions)
  * 0-2: noise (spam, unrelated content)
- category: one of "partnership", "technical", "listing", "community", "price", "general"
- summary: one sentence, at most 200 characters
- is_official: the Official flag from the input
- reasoning: short explanation of the score, at most 100 characters

Return ONLY a valid JSON array, no markdown or explanation.`)

	return sb.String()
}

// cleanJSON strips markdown fences and prose around the outermost JSON array.
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```JSON")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
