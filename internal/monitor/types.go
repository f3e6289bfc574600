// Package monitor runs the social chatter pipeline: plan queries, fetch and
// extract posts, drop known ones, score the rest in one batch, store them and
// notify subscribers whose threshold was met.
package monitor

import (
	"strings"
	"time"

	"horse.fit/portalerts/internal/db"
)

// Authorship records whether a post came from the entity's own account.
type Authorship int

const (
	AuthorshipCommunity Authorship = iota
	AuthorshipOfficial
)

func (a Authorship) Official() bool {
	return a == AuthorshipOfficial
}

func (a Authorship) String() string {
	if a == AuthorshipOfficial {
		return "official"
	}
	return "community"
}

type Category string

const (
	CategoryPartnership Category = "partnership"
	CategoryTechnical   Category = "technical"
	CategoryListing     Category = "listing"
	CategoryPrice       Category = "price"
	CategoryCommunity   Category = "community"
	CategoryGeneral     Category = "general"
)

// ParseCategory maps anything outside the closed set to CategoryGeneral.
func ParseCategory(raw string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryPartnership, CategoryTechnical, CategoryListing, CategoryPrice, CategoryCommunity, CategoryGeneral:
		return c
	default:
		return CategoryGeneral
	}
}

// Entity is the monitored project as the pipeline sees it.
type Entity struct {
	ID     int64
	UUID   string
	Name   string
	Symbol string
	// Handle is stored without the leading @.
	Handle string
}

func EntityFromRow(row db.Entity) Entity {
	handle := ""
	if row.SocialHandle != nil {
		handle = strings.TrimPrefix(strings.TrimSpace(*row.SocialHandle), "@")
	}
	return Entity{
		ID:     row.EntityID,
		UUID:   row.EntityUUID,
		Name:   strings.TrimSpace(row.Name),
		Symbol: strings.TrimSpace(row.Symbol),
		Handle: handle,
	}
}

// AuthorLabel is "@handle" for official posts and "Community" otherwise.
func (e Entity) AuthorLabel(a Authorship) string {
	if a.Official() && e.Handle != "" {
		return "@" + e.Handle
	}
	return "Community"
}

// Query is one planned search.
type Query struct {
	Text       string
	Authorship Authorship
}

// CandidatePost lives only between extraction and persistence.
type CandidatePost struct {
	Text       string
	Authorship Authorship
	Query      string
}

type Verdict struct {
	Score    int
	Category Category
	Summary  string
	// Fallback is set when the heuristic replaced the classifier verdict.
	Fallback bool
}

type ScoredCandidate struct {
	CandidatePost
	Verdict
}

type StoredPost struct {
	ID           int64
	UUID         string
	EntityID     int64
	Text         string
	AuthorLabel  string
	DiscoveredAt time.Time
	Score        int
	Category     Category
	Summary      string
	SourceURL    string
}

// RunSummary is returned by one invocation of the pipeline.
type RunSummary struct {
	EntitiesProcessed int  `json:"entities_processed"`
	PostsFound        int  `json:"posts_found"`
	PostsStored       int  `json:"posts_stored"`
	NotificationsSent int  `json:"notifications_sent"`
	EntitiesFailed    int  `json:"entities_failed"`
	EntitiesSkipped   int  `json:"entities_skipped"`
	SelectionFailed   bool `json:"selection_failed"`
}

func (s *RunSummary) add(o entityOutcome) {
	s.PostsFound += o.postsFound
	s.PostsStored += o.postsStored
	s.NotificationsSent += o.notificationsSent
	switch {
	case o.skipped:
		s.EntitiesSkipped++
	case o.failed:
		s.EntitiesFailed++
		s.EntitiesProcessed++
	default:
		s.EntitiesProcessed++
	}
}

type entityOutcome struct {
	postsFound        int
	postsStored       int
	notificationsSent int
	failed            bool
	skipped           bool
}
