package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const entityColumns = `
	e.entity_id,
	e.entity_uuid::text,
	e.name,
	e.symbol,
	e.social_handle,
	e.search_terms,
	e.last_checked,
	e.active
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (Entity, error) {
	var entity Entity
	err := row.Scan(
		&entity.EntityID,
		&entity.EntityUUID,
		&entity.Name,
		&entity.Symbol,
		&entity.SocialHandle,
		&entity.SearchTerms,
		&entity.LastChecked,
		&entity.Active,
	)
	return entity, err
}

// ListDueEntities returns active entities, least recently checked first.
func (p *Pool) ListDueEntities(ctx context.Context, limit int) ([]Entity, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := `
SELECT` + entityColumns + `
FROM portalerts.entities e
WHERE e.active
ORDER BY e.last_checked ASC NULLS FIRST, e.entity_id ASC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query due entities: %w", err)
	}
	defer rows.Close()

	items := make([]Entity, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		items = append(items, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity rows: %w", err)
	}
	return items, nil
}

func (p *Pool) GetEntityByID(ctx context.Context, entityID int64) (*Entity, error) {
	q := `
SELECT` + entityColumns + `
FROM portalerts.entities e
WHERE e.entity_id = $1
`
	entity, err := scanEntity(p.QueryRow(ctx, q, entityID))
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (p *Pool) GetEntityByUUID(ctx context.Context, entityUUID string) (*Entity, error) {
	q := `
SELECT` + entityColumns + `
FROM portalerts.entities e
WHERE e.entity_uuid = $1::uuid
`
	entity, err := scanEntity(p.QueryRow(ctx, q, strings.TrimSpace(entityUUID)))
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// StampEntityChecked moves last_checked forward to checkedAt. It never moves it back.
func (p *Pool) StampEntityChecked(ctx context.Context, entityID int64, checkedAt time.Time) error {
	const q = `
UPDATE portalerts.entities
SET
	last_checked = GREATEST(COALESCE(last_checked, $2), $2),
	updated_at = $2
WHERE entity_id = $1
`
	if _, err := p.Exec(ctx, q, entityID, checkedAt.UTC()); err != nil {
		return fmt.Errorf("stamp entity last_checked: %w", err)
	}
	return nil
}

// AcquireEntityLease claims the entity for owner until expiresAt unless an unexpired lease exists.
func (p *Pool) AcquireEntityLease(ctx context.Context, entityID int64, owner string, now, expiresAt time.Time) (bool, error) {
	const q = `
UPDATE portalerts.entities
SET
	lease_owner = $2,
	lease_expires_at = $4
WHERE entity_id = $1
  AND (lease_expires_at IS NULL OR lease_expires_at <= $3 OR lease_owner = $2)
`
	tag, err := p.Exec(ctx, q, entityID, owner, now.UTC(), expiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("acquire entity lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseEntityLease clears the lease only when owner still holds it.
func (p *Pool) ReleaseEntityLease(ctx context.Context, entityID int64, owner string) error {
	const q = `
UPDATE portalerts.entities
SET
	lease_owner = NULL,
	lease_expires_at = NULL
WHERE entity_id = $1
  AND lease_owner = $2
`
	if _, err := p.Exec(ctx, q, entityID, owner); err != nil {
		return fmt.Errorf("release entity lease: %w", err)
	}
	return nil
}
