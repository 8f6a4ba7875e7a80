package services

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
)

// LockSvcFacade manages advisory per-entity edit locks. Locks guard against
// simultaneous edit sessions; optimistic version checks at save time guard
// against the lock being bypassed or expiring mid-edit.
type LockSvcFacade interface {
	// Acquire takes (or refreshes) the lock for holder. Fails with a
	// *services.LockHeldError when a live lock is held by someone else.
	Acquire(ctx context.Context, entityType domain.EntityType, entityID string, holderID string) (*dto.LockResponse, error)

	// Release releases the holder's lock. Releasing an absent or foreign
	// lock is a no-op.
	Release(ctx context.Context, entityType domain.EntityType, entityID string, holderID string) error

	// Holder reports the current live lock, or nil when unlocked/expired.
	Holder(ctx context.Context, entityType domain.EntityType, entityID string) (*dto.LockResponse, error)
}
