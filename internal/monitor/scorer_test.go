package monitor

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/portalerts/internal/classifier"
)

func batchOf(official, community int) []CandidatePost {
	out := make([]CandidatePost, 0, official+community)
	for i := 0; i < official; i++ {
		out = append(out, CandidatePost{Text: "official announcement " + strings.Repeat("o", i+1), Authorship: AuthorshipOfficial, Query: "from:KaspaCurrency"})
	}
	for i := 0; i < community; i++ {
		out = append(out, CandidatePost{Text: "community chatter " + strings.Repeat("c", i+1), Authorship: AuthorshipCommunity, Query: "$KAS"})
	}
	return out
}

func TestScorer_EmptyBatchMakesNoCall(t *testing.T) {
	t.Parallel()

	fake := &fixedClassifier{score: 8}
	got := NewScorer(fake).Score(context.Background(), zerolog.Nop(), Entity{Name: "Kaspa"}, nil)
	if len(got) != 0 {
		t.Fatalf("expected no scored candidates, got %d", len(got))
	}
	if fake.calls() != 0 {
		t.Fatalf("expected no classifier call, got %d", fake.calls())
	}
}

func TestScorer_OneCallPerBatch(t *testing.T) {
	t.Parallel()

	fake := &fixedClassifier{score: 14, category: "Listing", summary: strings.Repeat("s", 250)}
	candidates := batchOf(2, 3)

	got := NewScorer(fake).Score(context.Background(), zerolog.Nop(), Entity{Name: "Kaspa", Symbol: "KAS"}, candidates)
	if fake.calls() != 1 {
		t.Fatalf("expected exactly one classifier call, got %d", fake.calls())
	}
	if len(fake.requests[0].Items) != 5 || !fake.requests[0].Items[0].Official {
		t.Fatalf("unexpected classifier request %+v", fake.requests[0])
	}
	if len(got) != len(candidates) {
		t.Fatalf("expected %d verdicts, got %d", len(candidates), len(got))
	}
	for _, scored := range got {
		if scored.Score != 10 {
			t.Fatalf("expected score clamped to 10, got %d", scored.Score)
		}
		if scored.Category != CategoryListing {
			t.Fatalf("expected listing category, got %q", scored.Category)
		}
		if len([]rune(scored.Summary)) != 200 {
			t.Fatalf("expected summary truncated to 200 runes, got %d", len([]rune(scored.Summary)))
		}
		if scored.Fallback {
			t.Fatalf("expected classifier verdict, not fallback")
		}
	}
}

func TestScorer_UnknownCategoryAndBlankSummary(t *testing.T) {
	t.Parallel()

	fake := &fixedClassifier{score: -3, category: "rumor", summary: "  "}
	candidates := batchOf(0, 1)

	got := NewScorer(fake).Score(context.Background(), zerolog.Nop(), Entity{Name: "Kaspa"}, candidates)
	if got[0].Score != 0 {
		t.Fatalf("expected score clamped to 0, got %d", got[0].Score)
	}
	if got[0].Category != CategoryGeneral {
		t.Fatalf("expected unknown category to map to general, got %q", got[0].Category)
	}
	if got[0].Summary != candidates[0].Text {
		t.Fatalf("expected blank summary to fall back to text, got %q", got[0].Summary)
	}
}

func TestScorer_RejectedBatchFallsBackForEveryCandidate(t *testing.T) {
	t.Parallel()

	statuses := []classifier.ParseStatus{
		classifier.StatusParseError,
		classifier.StatusLengthMismatch,
		classifier.StatusIndexMismatch,
		classifier.StatusCallFailed,
	}
	for _, status := range statuses {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			fake := &fixedClassifier{score: 9, status: status}
			long := CandidatePost{Text: strings.Repeat("é", 260), Authorship: AuthorshipCommunity}
			candidates := append(batchOf(2, 2), long)

			got := NewScorer(fake).Score(context.Background(), zerolog.Nop(), Entity{Name: "Kaspa"}, candidates)
			if len(got) != len(candidates) {
				t.Fatalf("expected %d verdicts, got %d", len(candidates), len(got))
			}
			for _, scored := range got {
				want := 5
				if scored.Authorship.Official() {
					want = 6
				}
				if scored.Score != want || scored.Category != CategoryGeneral || !scored.Fallback {
					t.Fatalf("expected fallback verdict %d/general, got %+v", want, scored.Verdict)
				}
			}
			if got[4].Summary != strings.Repeat("é", 200) {
				t.Fatalf("expected fallback summary to be the first 200 runes")
			}
		})
	}
}

func TestScorer_NilClassifierFallsBack(t *testing.T) {
	t.Parallel()

	got := NewScorer(nil).Score(context.Background(), zerolog.Nop(), Entity{Name: "Kaspa"}, batchOf(1, 0))
	if got[0].Score != 6 || !got[0].Fallback {
		t.Fatalf("expected official fallback without classifier, got %+v", got[0].Verdict)
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	cases := map[string]Category{
		"partnership": CategoryPartnership,
		" Technical ": CategoryTechnical,
		"PRICE":       CategoryPrice,
		"community":   CategoryCommunity,
		"":            CategoryGeneral,
		"airdrop":     CategoryGeneral,
	}
	for raw, want := range cases {
		if got := ParseCategory(raw); got != want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", raw, got, want)
		}
	}
}
