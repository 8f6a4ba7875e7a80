package pgsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
)

type PgxActivityRepository struct {
	BaseRepository
}

// newPgxActivityRepository creates a new repository for the activity log.
func newPgxActivityRepository(pool *pgxpool.Pool) portsrepo.ActivityRepository {
	return &PgxActivityRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.ActivityRepository = (*PgxActivityRepository)(nil)

// AppendActivity inserts one activity event. The table is append-only; there
// is no update or delete path.
func (r *PgxActivityRepository) AppendActivity(ctx context.Context, event domain.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (event_id, invoice_id, action, performed_by, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.Pool.Exec(ctx, query,
		event.EventID,
		event.InvoiceID,
		event.Action,
		event.PerformedBy,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// ListActivityByInvoice retrieves an invoice's events, newest first.
func (r *PgxActivityRepository) ListActivityByInvoice(ctx context.Context, invoiceID string, limit int) ([]domain.ActivityEvent, error) {
	query := `
		SELECT event_id, invoice_id, action, performed_by, detail, created_at
		FROM activity_events
		WHERE invoice_id = $1
		ORDER BY created_at DESC, event_id DESC
		LIMIT $2;
	`
	rows, err := r.Pool.Query(ctx, query, invoiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ActivityEvent, error) {
		var e domain.ActivityEvent
		err := row.Scan(&e.EventID, &e.InvoiceID, &e.Action, &e.PerformedBy, &e.Detail, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity events: %w", err)
	}
	return events, nil
}
