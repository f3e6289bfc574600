package monitor

import (
	"context"
	"fmt"
)

// PostLookup finds post texts already stored for an entity.
type PostLookup interface {
	ExistingPostTexts(ctx context.Context, entityID int64, texts []string) (map[string]struct{}, error)
}

// Deduplicate caps candidates to maxCandidates and drops those already stored,
// using one batched lookup. It must run before scoring.
func Deduplicate(ctx context.Context, store PostLookup, entityID int64, candidates []CandidatePost, maxCandidates int) ([]CandidatePost, error) {
	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		texts = append(texts, candidate.Text)
	}

	existing, err := store.ExistingPostTexts(ctx, entityID, texts)
	if err != nil {
		return nil, fmt.Errorf("lookup existing posts: %w", err)
	}

	fresh := make([]CandidatePost, 0, len(candidates))
	for _, candidate := range candidates {
		if _, exists := existing[candidate.Text]; exists {
			continue
		}
		fresh = append(fresh, candidate)
	}
	return fresh, nil
}
