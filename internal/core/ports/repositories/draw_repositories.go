package repositories

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DrawReader defines read operations for payment draws.
type DrawReader interface {
	// FindDrawByID retrieves one draw.
	FindDrawByID(ctx context.Context, drawID string) (*domain.Draw, error)

	// FindDraftDrawByJob retrieves the job's open draft draw, if any.
	// Returns apperrors.ErrNotFound when the job has no draft draw.
	FindDraftDrawByJob(ctx context.Context, jobID string) (*domain.Draw, error)

	// ListDrawsByJob retrieves all draws for a job.
	ListDrawsByJob(ctx context.Context, jobID string) ([]domain.Draw, error)
}

// DrawWriter defines write operations for payment draws.
type DrawWriter interface {
	// SaveDraw inserts a new draw.
	SaveDraw(ctx context.Context, draw domain.Draw) error

	// UpdateDrawTotal overwrites the derived total_amount.
	UpdateDrawTotal(ctx context.Context, drawID string, total decimal.Decimal, updatedBy string) error
}

// DrawRepositoryFacade combines draw repository interfaces.
type DrawRepositoryFacade interface {
	DrawReader
	DrawWriter
}
