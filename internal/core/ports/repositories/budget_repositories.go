package repositories

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BudgetReader defines read operations for budget lines and jobs.
type BudgetReader interface {
	// FindBudgetLinesByJob retrieves all budget lines for a job.
	FindBudgetLinesByJob(ctx context.Context, jobID string) ([]domain.BudgetLine, error)

	// FindJobByID retrieves one job.
	FindJobByID(ctx context.Context, jobID string) (*domain.Job, error)

	// ListJobs retrieves all active jobs.
	ListJobs(ctx context.Context) ([]domain.Job, error)
}

// BudgetWriter defines write operations for budget lines. The derived
// billed/paid fields are only ever written by the reconciliation engine.
type BudgetWriter interface {
	// SaveBudgetLine inserts a new budget line.
	SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error

	// UpdateBudgetDerived overwrites the derived billed and paid amounts.
	UpdateBudgetDerived(ctx context.Context, budgetLineID string, billed, paid decimal.Decimal, updatedBy string) error
}

// BudgetRepositoryFacade combines budget repository interfaces.
type BudgetRepositoryFacade interface {
	BudgetReader
	BudgetWriter
}
