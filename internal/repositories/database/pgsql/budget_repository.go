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
	"github.com/shopspring/decimal"
)

type PgxBudgetRepository struct {
	BaseRepository
}

// newPgxBudgetRepository creates a new repository for budget line and job data.
func newPgxBudgetRepository(pool *pgxpool.Pool) portsrepo.BudgetRepositoryFacade {
	return &PgxBudgetRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.BudgetRepositoryFacade = (*PgxBudgetRepository)(nil)

// FindBudgetLinesByJob retrieves all budget lines for a job.
func (r *PgxBudgetRepository) FindBudgetLinesByJob(ctx context.Context, jobID string) ([]domain.BudgetLine, error) {
	query := `
		SELECT budget_line_id, job_id, cost_code_id, budgeted_amount, committed_amount,
		       billed_amount, paid_amount, created_at, created_by, last_updated_at, last_updated_by
		FROM budget_lines
		WHERE job_id = $1
		ORDER BY cost_code_id;
	`
	rows, err := r.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget lines: %w", err)
	}
	defer rows.Close()

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BudgetLine, error) {
		var line domain.BudgetLine
		err := row.Scan(
			&line.BudgetLineID,
			&line.JobID,
			&line.CostCodeID,
			&line.BudgetedAmount,
			&line.CommittedAmount,
			&line.BilledAmount,
			&line.PaidAmount,
			&line.CreatedAt,
			&line.CreatedBy,
			&line.LastUpdatedAt,
			&line.LastUpdatedBy,
		)
		return line, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget lines: %w", err)
	}
	return lines, nil
}

// FindJobByID retrieves one job.
func (r *PgxBudgetRepository) FindJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, name, address, is_active, created_at, created_by, last_updated_at, last_updated_by
		FROM jobs
		WHERE job_id = $1;
	`
	var job domain.Job
	err := r.Pool.QueryRow(ctx, query, jobID).Scan(
		&job.JobID,
		&job.Name,
		&job.Address,
		&job.IsActive,
		&job.CreatedAt,
		&job.CreatedBy,
		&job.LastUpdatedAt,
		&job.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job not found: " + jobID)
		}
		return nil, fmt.Errorf("failed to find job %s: %w", jobID, err)
	}
	return &job, nil
}

// ListJobs retrieves all active jobs.
func (r *PgxBudgetRepository) ListJobs(ctx context.Context) ([]domain.Job, error) {
	query := `
		SELECT job_id, name, address, is_active, created_at, created_by, last_updated_at, last_updated_by
		FROM jobs
		WHERE is_active
		ORDER BY name;
	`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Job, error) {
		var job domain.Job
		err := row.Scan(
			&job.JobID,
			&job.Name,
			&job.Address,
			&job.IsActive,
			&job.CreatedAt,
			&job.CreatedBy,
			&job.LastUpdatedAt,
			&job.LastUpdatedBy,
		)
		return job, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}
	return jobs, nil
}

// SaveBudgetLine inserts a new budget line.
func (r *PgxBudgetRepository) SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error {
	query := `
		INSERT INTO budget_lines (budget_line_id, job_id, cost_code_id, budgeted_amount, committed_amount, billed_amount, paid_amount, created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.Pool.Exec(ctx, query,
		line.BudgetLineID,
		line.JobID,
		line.CostCodeID,
		line.BudgetedAmount,
		line.CommittedAmount,
		line.BilledAmount,
		line.PaidAmount,
		line.CreatedAt,
		line.CreatedBy,
		line.LastUpdatedAt,
		line.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert budget line %s: %w", line.BudgetLineID, err)
	}
	return nil
}

// UpdateBudgetDerived overwrites the derived billed and paid amounts.
func (r *PgxBudgetRepository) UpdateBudgetDerived(ctx context.Context, budgetLineID string, billed, paid decimal.Decimal, updatedBy string) error {
	query := `
		UPDATE budget_lines SET billed_amount = $2, paid_amount = $3, last_updated_at = NOW(), last_updated_by = $4
		WHERE budget_line_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, budgetLineID, billed, paid, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update budget line %s: %w", budgetLineID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("budget line not found: " + budgetLineID)
	}
	return nil
}
