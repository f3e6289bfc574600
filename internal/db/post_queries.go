package db

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

const insertPostSQL = `
INSERT INTO portalerts.scored_posts (
	entity_id,
	post_text,
	author_label,
	discovered_at,
	importance_score,
	category,
	summary,
	source_url
)
VALUES ($1, $2, $3, $4, $5, $6::portalerts.post_category, $7, $8)
ON CONFLICT (entity_id, md5(post_text)) DO NOTHING
RETURNING post_id, post_uuid::text, discovered_at
`

// NewScoredPost is the insert payload for one scored candidate.
type NewScoredPost struct {
	EntityID        int64
	PostText        string
	AuthorLabel     string
	DiscoveredAt    time.Time
	ImportanceScore int16
	Category        string
	Summary         string
	SourceURL       string
}

// PostListItem is used by the entity posts API.
type PostListItem struct {
	PostUUID        string    `json:"post_uuid"`
	PostText        string    `json:"text"`
	AuthorLabel     string    `json:"author"`
	DiscoveredAt    time.Time `json:"discovered_at"`
	ImportanceScore int16     `json:"importance_score"`
	Category        string    `json:"category"`
	Summary         string    `json:"summary"`
	SourceURL       string    `json:"source_url"`
}

// ExistingPostTexts returns the subset of texts already stored for the entity.
func (p *Pool) ExistingPostTexts(ctx context.Context, entityID int64, texts []string) (map[string]struct{}, error) {
	found := map[string]struct{}{}
	if len(texts) == 0 {
		return found, nil
	}
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	digests := make([]string, 0, len(texts))
	for _, text := range texts {
		digests = append(digests, postTextDigest(text))
	}

	var matches []string
	err := p.gdb.WithContext(ctx).
		Model(&ScoredPost{}).
		Where("entity_id = ? AND md5(post_text) IN ?", entityID, digests).
		Pluck("post_text", &matches).Error
	if err != nil {
		return nil, fmt.Errorf("query existing post texts: %w", err)
	}

	for _, text := range matches {
		found[text] = struct{}{}
	}
	return found, nil
}

// postTextDigest matches Postgres md5(text), the key of the post uniqueness index.
func postTextDigest(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// InsertPostIfAbsent stores the post unless (entity_id, post_text) already exists.
// inserted=false with a nil error means the row lost the uniqueness race.
func (p *Pool) InsertPostIfAbsent(ctx context.Context, post NewScoredPost) (*ScoredPost, bool, error) {
	stored := ScoredPost{
		EntityID:        post.EntityID,
		PostText:        post.PostText,
		AuthorLabel:     post.AuthorLabel,
		ImportanceScore: post.ImportanceScore,
		Category:        post.Category,
		Summary:         post.Summary,
		SourceURL:       post.SourceURL,
	}

	err := p.QueryRow(
		ctx,
		insertPostSQL,
		post.EntityID,
		post.PostText,
		post.AuthorLabel,
		post.DiscoveredAt.UTC(),
		post.ImportanceScore,
		post.Category,
		post.Summary,
		post.SourceURL,
	).Scan(&stored.PostID, &stored.PostUUID, &stored.DiscoveredAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert scored post: %w", err)
	}

	return &stored, true, nil
}

// ListEntityPosts lists stored posts for one entity, newest first.
func (p *Pool) ListEntityPosts(ctx context.Context, entityID int64, minScore int, limit int) ([]PostListItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	sp.post_uuid::text,
	sp.post_text,
	sp.author_label,
	sp.discovered_at,
	sp.importance_score,
	sp.category::text,
	sp.summary,
	sp.source_url
FROM portalerts.scored_posts sp
WHERE sp.entity_id = $1
  AND sp.importance_score >= $2
ORDER BY sp.discovered_at DESC, sp.post_id DESC
LIMIT $3
`

	rows, err := p.Query(ctx, q, entityID, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("query entity posts: %w", err)
	}
	defer rows.Close()

	items := make([]PostListItem, 0, limit)
	for rows.Next() {
		var row PostListItem
		if err := rows.Scan(
			&row.PostUUID,
			&row.PostText,
			&row.AuthorLabel,
			&row.DiscoveredAt,
			&row.ImportanceScore,
			&row.Category,
			&row.Summary,
			&row.SourceURL,
		); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post rows: %w", err)
	}
	return items, nil
}
