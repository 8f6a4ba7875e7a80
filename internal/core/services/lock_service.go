package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
)

// lockService manages advisory per-entity edit locks with a TTL so abandoned
// sessions cannot wedge an invoice.
type lockService struct {
	lockRepo portsrepo.LockRepository
	userRepo portsrepo.UserReader
	ttl      time.Duration
	now      func() time.Time
}

// NewLockService creates a new lock service. ttl bounds how long a lock
// survives without a refresh.
func NewLockService(lockRepo portsrepo.LockRepository, userRepo portsrepo.UserReader, ttl time.Duration) portssvc.LockSvcFacade {
	return &lockService{
		lockRepo: lockRepo,
		userRepo: userRepo,
		ttl:      ttl,
		now:      time.Now,
	}
}

var _ portssvc.LockSvcFacade = (*lockService)(nil)

// Acquire takes or refreshes the lock for holderID.
func (s *lockService) Acquire(ctx context.Context, entityType domain.EntityType, entityID string, holderID string) (*dto.LockResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	now := s.now()

	lock := domain.EntityLock{
		EntityType: entityType,
		EntityID:   entityID,
		HolderID:   holderID,
		HolderName: s.holderName(ctx, holderID),
		AcquiredAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}

	current, err := s.lockRepo.AcquireLock(ctx, lock)
	if err != nil {
		if errors.Is(err, apperrors.ErrLocked) && current != nil {
			logger.Info("Lock acquisition blocked",
				slog.String("entity_type", string(entityType)),
				slog.String("entity_id", entityID),
				slog.String("held_by", current.HolderID))
			return nil, &LockHeldError{
				EntityType: current.EntityType,
				EntityID:   current.EntityID,
				HolderID:   current.HolderID,
				HolderName: current.HolderName,
				AcquiredAt: current.AcquiredAt,
			}
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	resp := dto.ToLockResponse(current)
	return &resp, nil
}

// Release releases the holder's lock. Absent or foreign locks are a no-op.
func (s *lockService) Release(ctx context.Context, entityType domain.EntityType, entityID string, holderID string) error {
	if err := s.lockRepo.ReleaseLock(ctx, entityType, entityID, holderID); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Holder reports the current live lock, or nil when unlocked or expired.
func (s *lockService) Holder(ctx context.Context, entityType domain.EntityType, entityID string) (*dto.LockResponse, error) {
	lock, err := s.lockRepo.FindLock(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch lock: %w", err)
	}
	if lock == nil || lock.ExpiredAt(s.now()) {
		return nil, nil
	}
	resp := dto.ToLockResponse(lock)
	return &resp, nil
}

// holderName resolves a display name for the lock holder, best effort.
func (s *lockService) holderName(ctx context.Context, holderID string) string {
	user, err := s.userRepo.FindUserByID(ctx, holderID)
	if err != nil || user == nil {
		return ""
	}
	return user.Name
}
