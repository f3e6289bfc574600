package monitor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/portalerts/internal/classifier"
)

const (
	maxSummaryRunes       = 200
	fallbackScoreOfficial = 6
	fallbackScoreDefault  = 5
)

// Classifier rates a whole batch in one call.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Result
}

// Scorer assigns a verdict to every candidate. A rejected batch gets the
// fallback verdict for every candidate, never a mix.
type Scorer struct {
	classifier Classifier
}

func NewScorer(c Classifier) *Scorer {
	return &Scorer{classifier: c}
}

func (s *Scorer) Score(ctx context.Context, logger zerolog.Logger, entity Entity, candidates []CandidatePost) []ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	var result classifier.Result
	if s == nil || s.classifier == nil {
		result = classifier.Result{Status: classifier.StatusCallFailed, Err: classifier.ErrNoProvider}
	} else {
		items := make([]classifier.Item, 0, len(candidates))
		for _, candidate := range candidates {
			items = append(items, classifier.Item{Text: candidate.Text, Official: candidate.Authorship.Official()})
		}
		result = s.classifier.Classify(ctx, classifier.Request{
			EntityName: entity.Name,
			Symbol:     entity.Symbol,
			Items:      items,
		})
	}

	out := make([]ScoredCandidate, 0, len(candidates))
	if !result.OK() || len(result.Verdicts) != len(candidates) {
		logger.Warn().
			Err(result.Err).
			Str("status", string(result.Status)).
			Int("candidates", len(candidates)).
			Msg("using fallback scores for batch")
		for _, candidate := range candidates {
			out = append(out, ScoredCandidate{CandidatePost: candidate, Verdict: fallbackVerdict(candidate)})
		}
		return out
	}

	for i, candidate := range candidates {
		out = append(out, ScoredCandidate{
			CandidatePost: candidate,
			Verdict:       normalizeVerdict(candidate, result.Verdicts[i]),
		})
	}
	return out
}

func fallbackVerdict(candidate CandidatePost) Verdict {
	score := fallbackScoreDefault
	if candidate.Authorship.Official() {
		score = fallbackScoreOfficial
	}
	return Verdict{
		Score:    score,
		Category: CategoryGeneral,
		Summary:  truncateRunes(candidate.Text, maxSummaryRunes),
		Fallback: true,
	}
}

func normalizeVerdict(candidate CandidatePost, v classifier.Verdict) Verdict {
	summary := truncateRunes(strings.TrimSpace(v.Summary), maxSummaryRunes)
	if summary == "" {
		summary = truncateRunes(candidate.Text, maxSummaryRunes)
	}
	return Verdict{
		Score:    clampScore(v.Score),
		Category: ParseCategory(v.Category),
		Summary:  summary,
	}
}

func clampScore(score int) int {
	return min(max(score, 0), 10)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
