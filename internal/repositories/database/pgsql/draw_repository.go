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

type PgxDrawRepository struct {
	BaseRepository
}

// newPgxDrawRepository creates a new repository for payment draw data.
func newPgxDrawRepository(pool *pgxpool.Pool) portsrepo.DrawRepositoryFacade {
	return &PgxDrawRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.DrawRepositoryFacade = (*PgxDrawRepository)(nil)

const drawColumns = `draw_id, job_id, draw_number, status, total_amount, created_at, created_by, last_updated_at, last_updated_by`

func scanDraw(row pgx.Row) (domain.Draw, error) {
	var d domain.Draw
	err := row.Scan(
		&d.DrawID,
		&d.JobID,
		&d.DrawNumber,
		&d.Status,
		&d.TotalAmount,
		&d.CreatedAt,
		&d.CreatedBy,
		&d.LastUpdatedAt,
		&d.LastUpdatedBy,
	)
	return d, err
}

// FindDrawByID retrieves one draw.
func (r *PgxDrawRepository) FindDrawByID(ctx context.Context, drawID string) (*domain.Draw, error) {
	query := `SELECT ` + drawColumns + ` FROM draws WHERE draw_id = $1;`
	draw, err := scanDraw(r.Pool.QueryRow(ctx, query, drawID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("draw not found: " + drawID)
		}
		return nil, fmt.Errorf("failed to find draw %s: %w", drawID, err)
	}
	return &draw, nil
}

// FindDraftDrawByJob retrieves the job's open draft draw.
func (r *PgxDrawRepository) FindDraftDrawByJob(ctx context.Context, jobID string) (*domain.Draw, error) {
	query := `SELECT ` + drawColumns + ` FROM draws WHERE job_id = $1 AND status = 'DRAFT' ORDER BY draw_number DESC LIMIT 1;`
	draw, err := scanDraw(r.Pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("no draft draw for job: " + jobID)
		}
		return nil, fmt.Errorf("failed to find draft draw for job %s: %w", jobID, err)
	}
	return &draw, nil
}

// ListDrawsByJob retrieves all draws for a job.
func (r *PgxDrawRepository) ListDrawsByJob(ctx context.Context, jobID string) ([]domain.Draw, error) {
	query := `SELECT ` + drawColumns + ` FROM draws WHERE job_id = $1 ORDER BY draw_number;`
	rows, err := r.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	draws, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Draw, error) {
		return scanDraw(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan draws: %w", err)
	}
	return draws, nil
}

// SaveDraw inserts a new draw.
func (r *PgxDrawRepository) SaveDraw(ctx context.Context, draw domain.Draw) error {
	query := `
		INSERT INTO draws (` + drawColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.Pool.Exec(ctx, query,
		draw.DrawID,
		draw.JobID,
		draw.DrawNumber,
		draw.Status,
		draw.TotalAmount,
		draw.CreatedAt,
		draw.CreatedBy,
		draw.LastUpdatedAt,
		draw.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert draw %s: %w", draw.DrawID, err)
	}
	return nil
}

// UpdateDrawTotal overwrites the derived total_amount.
func (r *PgxDrawRepository) UpdateDrawTotal(ctx context.Context, drawID string, total decimal.Decimal, updatedBy string) error {
	query := `
		UPDATE draws SET total_amount = $2, last_updated_at = NOW(), last_updated_by = $3
		WHERE draw_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, drawID, total, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update draw total %s: %w", drawID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("draw not found: " + drawID)
	}
	return nil
}
