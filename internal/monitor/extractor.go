package monitor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// postContentSelector matches post bodies on Nitter search result pages.
const postContentSelector = "div.tweet-content"

type ExtractOptions struct {
	MinLength int
	MaxPosts  int
}

// ExtractCandidates turns a search result page into candidate posts. A page
// without matching blocks yields no candidates and no error.
func ExtractCandidates(document string, query Query, opts ExtractOptions) ([]CandidatePost, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse search document: %w", err)
	}

	out := make([]CandidatePost, 0, max(opts.MaxPosts, 0))
	seen := map[string]struct{}{}
	doc.Find(postContentSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if opts.MaxPosts > 0 && len(out) >= opts.MaxPosts {
			return false
		}

		text := normalizeWhitespace(blockText(sel))
		if text == "" || utf8.RuneCountInString(text) < opts.MinLength {
			return true
		}
		if _, exists := seen[text]; exists {
			return true
		}
		seen[text] = struct{}{}

		out = append(out, CandidatePost{
			Text:       text,
			Authorship: query.Authorship,
			Query:      query.Text,
		})
		return true
	})

	return out, nil
}

// blockText joins every text node with a space so inline markup never glues words together.
func blockText(sel *goquery.Selection) string {
	parts := make([]string, 0, 8)
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			parts = append(parts, child.Text())
			return
		}
		parts = append(parts, blockText(child))
	})
	return strings.Join(parts, " ")
}

func normalizeWhitespace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
