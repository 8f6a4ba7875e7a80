package repositories

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
)

// ActivityRepository defines persistence for the append-only activity log.
type ActivityRepository interface {
	// AppendActivity inserts one activity event.
	AppendActivity(ctx context.Context, event domain.ActivityEvent) error

	// ListActivityByInvoice retrieves an invoice's events, newest first.
	ListActivityByInvoice(ctx context.Context, invoiceID string, limit int) ([]domain.ActivityEvent, error)
}
