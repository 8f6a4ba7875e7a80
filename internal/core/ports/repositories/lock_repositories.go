package repositories

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
)

// LockRepository defines persistence for advisory entity locks. Acquisition
// must be atomic with respect to the store: two concurrent acquires for the
// same entity must serialize so exactly one wins.
type LockRepository interface {
	// AcquireLock attempts to take the lock. If a live lock is held by a
	// different holder it returns that lock and apperrors.ErrLocked.
	// An expired lock is replaced. Re-acquiring one's own lock refreshes it.
	AcquireLock(ctx context.Context, lock domain.EntityLock) (*domain.EntityLock, error)

	// ReleaseLock releases the lock if held by holderID. Releasing a lock
	// that is absent or held by someone else is a no-op.
	ReleaseLock(ctx context.Context, entityType domain.EntityType, entityID, holderID string) error

	// FindLock retrieves the current lock row, expired or not.
	FindLock(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityLock, error)
}
