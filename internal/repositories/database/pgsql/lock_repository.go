package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
)

type PgxLockRepository struct {
	BaseRepository
}

// newPgxLockRepository creates a new repository for advisory entity locks.
func newPgxLockRepository(pool *pgxpool.Pool) portsrepo.LockRepository {
	return &PgxLockRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.LockRepository = (*PgxLockRepository)(nil)

// AcquireLock attempts the lock in a single conditional upsert so two
// concurrent acquires serialize on the row: the conflict branch only replaces
// a lock that is expired or already the caller's own.
func (r *PgxLockRepository) AcquireLock(ctx context.Context, lock domain.EntityLock) (*domain.EntityLock, error) {
	query := `
		INSERT INTO entity_locks (entity_type, entity_id, holder_id, holder_name, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			holder_id = EXCLUDED.holder_id,
			holder_name = EXCLUDED.holder_name,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE entity_locks.holder_id = EXCLUDED.holder_id
		   OR entity_locks.expires_at <= EXCLUDED.acquired_at
		RETURNING entity_type, entity_id, holder_id, holder_name, acquired_at, expires_at;
	`
	var acquired domain.EntityLock
	err := r.Pool.QueryRow(ctx, query,
		lock.EntityType,
		lock.EntityID,
		lock.HolderID,
		lock.HolderName,
		lock.AcquiredAt,
		lock.ExpiresAt,
	).Scan(
		&acquired.EntityType,
		&acquired.EntityID,
		&acquired.HolderID,
		&acquired.HolderName,
		&acquired.AcquiredAt,
		&acquired.ExpiresAt,
	)
	if err == nil {
		return &acquired, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to acquire lock on %s/%s: %w", lock.EntityType, lock.EntityID, err)
	}

	// Zero rows: a live lock held by someone else. Report the holder.
	current, err := r.FindLock(ctx, lock.EntityType, lock.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conflicting lock: %w", err)
	}
	return current, apperrors.NewAppError(423, "entity is locked by another session", apperrors.ErrLocked)
}

// ReleaseLock deletes the lock if holderID owns it; otherwise a no-op.
func (r *PgxLockRepository) ReleaseLock(ctx context.Context, entityType domain.EntityType, entityID, holderID string) error {
	query := `DELETE FROM entity_locks WHERE entity_type = $1 AND entity_id = $2 AND holder_id = $3;`
	if _, err := r.Pool.Exec(ctx, query, entityType, entityID, holderID); err != nil {
		return fmt.Errorf("failed to release lock on %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// FindLock retrieves the current lock row, expired or not.
func (r *PgxLockRepository) FindLock(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntityLock, error) {
	query := `
		SELECT entity_type, entity_id, holder_id, holder_name, acquired_at, expires_at
		FROM entity_locks
		WHERE entity_type = $1 AND entity_id = $2;
	`
	var lock domain.EntityLock
	err := r.Pool.QueryRow(ctx, query, entityType, entityID).Scan(
		&lock.EntityType,
		&lock.EntityID,
		&lock.HolderID,
		&lock.HolderName,
		&lock.AcquiredAt,
		&lock.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("no lock on " + string(entityType) + "/" + entityID)
		}
		return nil, fmt.Errorf("failed to find lock on %s/%s: %w", entityType, entityID, err)
	}
	return &lock, nil
}
