// Package lease keeps two overlapping monitor invocations from processing the same entity.
package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lease is held until Release or until its TTL passes.
type Lease interface {
	Token() string
	Release(ctx context.Context) error
}

// Leaser grants per-entity leases. ok=false means another holder has an unexpired lease.
type Leaser interface {
	Acquire(ctx context.Context, entityID int64, ttl time.Duration) (lease Lease, ok bool, err error)
}

func newToken() string {
	return uuid.NewString()
}
