package monitor

import "strings"

// PlanQueries returns the searches for one entity, most precise first:
// the official account, then the cashtag, then the display name.
func PlanQueries(entity Entity) []Query {
	queries := make([]Query, 0, 3)
	seen := make(map[string]struct{}, 3)
	add := func(text string, authorship Authorship) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, Query{Text: text, Authorship: authorship})
	}

	if handle := strings.TrimPrefix(strings.TrimSpace(entity.Handle), "@"); handle != "" {
		add("from:"+handle, AuthorshipOfficial)
	}
	if symbol := strings.TrimPrefix(strings.TrimSpace(entity.Symbol), "$"); symbol != "" {
		add("$"+strings.ToUpper(symbol), AuthorshipCommunity)
	}
	add(entity.Name, AuthorshipCommunity)

	return queries
}
