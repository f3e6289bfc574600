package lease

import (
	"context"
	"fmt"
	"time"

	"horse.fit/portalerts/internal/globaltime"
)

type entityLeaseStore interface {
	AcquireEntityLease(ctx context.Context, entityID int64, owner string, now, expiresAt time.Time) (bool, error)
	ReleaseEntityLease(ctx context.Context, entityID int64, owner string) error
}

// Postgres stores the lease on the entity row itself.
type Postgres struct {
	store entityLeaseStore
	now   func() time.Time
}

func NewPostgres(store entityLeaseStore) *Postgres {
	return &Postgres{store: store, now: globaltime.UTC}
}

func (p *Postgres) Acquire(ctx context.Context, entityID int64, ttl time.Duration) (Lease, bool, error) {
	if p == nil || p.store == nil {
		return nil, false, fmt.Errorf("postgres leaser is not initialized")
	}
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lease ttl must be > 0")
	}

	token := newToken()
	now := p.now()
	ok, err := p.store.AcquireEntityLease(ctx, entityID, token, now, now.Add(ttl))
	if err != nil || !ok {
		return nil, false, err
	}
	return &postgresLease{store: p.store, entityID: entityID, token: token}, true, nil
}

type postgresLease struct {
	store    entityLeaseStore
	entityID int64
	token    string
}

func (l *postgresLease) Token() string {
	return l.token
}

func (l *postgresLease) Release(ctx context.Context) error {
	return l.store.ReleaseEntityLease(ctx, l.entityID, l.token)
}
