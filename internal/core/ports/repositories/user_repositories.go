package repositories

import (
	"context"
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
)

// UserReader defines read operations for users.
type UserReader interface {
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	SaveUser(ctx context.Context, user domain.User) error
	UpdateUser(ctx context.Context, user domain.User) error
	DeactivateUser(ctx context.Context, userID string, deletedBy string, now time.Time) error
}

// UserRepositoryFacade combines user repository interfaces.
type UserRepositoryFacade interface {
	UserReader
	UserWriter
}
