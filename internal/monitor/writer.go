package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/portalerts/internal/db"
)

// PostStore inserts a post unless (entity, text) already exists.
type PostStore interface {
	InsertPostIfAbsent(ctx context.Context, post db.NewScoredPost) (*db.ScoredPost, bool, error)
}

// LinkBuilder builds the public search link stored as a post's source.
type LinkBuilder interface {
	SearchURL(query string) string
}

type Writer struct {
	store PostStore
	links LinkBuilder
	now   func() time.Time
}

func NewWriter(store PostStore, links LinkBuilder, now func() time.Time) *Writer {
	return &Writer{store: store, links: links, now: now}
}

// Persist stores each scored candidate independently. Conflicts are skipped
// silently and failures are logged without affecting the other posts.
func (w *Writer) Persist(ctx context.Context, logger zerolog.Logger, entity Entity, scored []ScoredCandidate) []StoredPost {
	stored := make([]StoredPost, 0, len(scored))
	for _, candidate := range scored {
		sourceURL := ""
		if w.links != nil {
			sourceURL = w.links.SearchURL(candidate.Query)
		}

		row, inserted, err := w.store.InsertPostIfAbsent(ctx, db.NewScoredPost{
			EntityID:        entity.ID,
			PostText:        candidate.Text,
			AuthorLabel:     entity.AuthorLabel(candidate.Authorship),
			DiscoveredAt:    w.now(),
			ImportanceScore: int16(clampScore(candidate.Score)),
			Category:        string(candidate.Category),
			Summary:         candidate.Summary,
			SourceURL:       sourceURL,
		})
		if err != nil {
			logger.Error().
				Err(err).
				Str("query", candidate.Query).
				Msg("store scored post failed")
			continue
		}
		if !inserted {
			logger.Debug().
				Str("query", candidate.Query).
				Msg("post already stored, skipping")
			continue
		}

		stored = append(stored, StoredPost{
			ID:           row.PostID,
			UUID:         row.PostUUID,
			EntityID:     row.EntityID,
			Text:         row.PostText,
			AuthorLabel:  row.AuthorLabel,
			DiscoveredAt: row.DiscoveredAt,
			Score:        int(row.ImportanceScore),
			Category:     ParseCategory(row.Category),
			Summary:      row.Summary,
			SourceURL:    row.SourceURL,
		})
	}
	return stored
}
