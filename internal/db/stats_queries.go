package db

import (
	"context"
	"fmt"
	"time"
)

// StatsTotals stores table row counts.
type StatsTotals struct {
	Entities            int64 `json:"entities"`
	ActiveEntities      int64 `json:"active_entities"`
	ScoredPosts         int64 `json:"scored_posts"`
	ActiveSubscribers   int64 `json:"active_subscribers"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
}

// StatsThroughput stores counters for one UTC day.
type StatsThroughput struct {
	PostsStoredToday       int64 `json:"posts_stored_today"`
	NotificationsSentToday int64 `json:"notifications_sent_today"`
	NotificationsFailed    int64 `json:"notifications_failed_today"`
	EntitiesNeverChecked   int64 `json:"entities_never_checked"`
}

// CategoryCount is the number of stored posts per category.
type CategoryCount struct {
	Category string `json:"category"`
	Posts    int64  `json:"posts"`
}

// MonitorStats is the read model returned by the stats endpoint.
type MonitorStats struct {
	Day        string          `json:"day"`
	Totals     StatsTotals     `json:"totals"`
	Throughput StatsThroughput `json:"throughput"`
	Categories []CategoryCount `json:"categories"`
}

// QueryStats returns row counts, per-category totals and daily throughput.
func (p *Pool) QueryStats(ctx context.Context, dayStart, dayEnd time.Time) (*MonitorStats, error) {
	startUTC := dayStart.UTC()
	endUTC := dayEnd.UTC()
	if !startUTC.Before(endUTC) {
		return nil, fmt.Errorf("dayStart must be before dayEnd")
	}

	stats := &MonitorStats{
		Day:        startUTC.Format("2006-01-02"),
		Categories: make([]CategoryCount, 0, 6),
	}

	const totalsQuery = `
SELECT
	(SELECT COUNT(*) FROM portalerts.entities) AS entities,
	(SELECT COUNT(*) FROM portalerts.entities e WHERE e.active) AS active_entities,
	(SELECT COUNT(*) FROM portalerts.scored_posts) AS scored_posts,
	(SELECT COUNT(*) FROM portalerts.subscribers s WHERE s.active) AS active_subscribers,
	(SELECT COUNT(*) FROM portalerts.subscriptions sub WHERE sub.active) AS active_subscriptions
`
	if err := p.QueryRow(ctx, totalsQuery).Scan(
		&stats.Totals.Entities,
		&stats.Totals.ActiveEntities,
		&stats.Totals.ScoredPosts,
		&stats.Totals.ActiveSubscribers,
		&stats.Totals.ActiveSubscriptions,
	); err != nil {
		return nil, fmt.Errorf("query stats totals: %w", err)
	}

	const categoriesQuery = `
SELECT sp.category::text, COUNT(*)::BIGINT
FROM portalerts.scored_posts sp
GROUP BY sp.category
ORDER BY 1
`
	rows, err := p.Query(ctx, categoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("query stats categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row CategoryCount
		if err := rows.Scan(&row.Category, &row.Posts); err != nil {
			return nil, fmt.Errorf("scan stats category row: %w", err)
		}
		stats.Categories = append(stats.Categories, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats category rows: %w", err)
	}

	const throughputQuery = `
SELECT
	(SELECT COUNT(*) FROM portalerts.scored_posts sp WHERE sp.discovered_at >= $1 AND sp.discovered_at < $2) AS posts_stored_today,
	(SELECT COUNT(*) FROM portalerts.notification_attempts na WHERE na.attempted_at >= $1 AND na.attempted_at < $2 AND na.status = 'sent') AS notifications_sent_today,
	(SELECT COUNT(*) FROM portalerts.notification_attempts na WHERE na.attempted_at >= $1 AND na.attempted_at < $2 AND na.status = 'failed') AS notifications_failed_today,
	(SELECT COUNT(*) FROM portalerts.entities e WHERE e.active AND e.last_checked IS NULL) AS entities_never_checked
`
	if err := p.QueryRow(ctx, throughputQuery, startUTC, endUTC).Scan(
		&stats.Throughput.PostsStoredToday,
		&stats.Throughput.NotificationsSentToday,
		&stats.Throughput.NotificationsFailed,
		&stats.Throughput.EntitiesNeverChecked,
	); err != nil {
		return nil, fmt.Errorf("query stats throughput: %w", err)
	}

	return stats, nil
}
