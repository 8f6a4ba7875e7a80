package services

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
)

// ReconciliationSvcFacade recomputes derived monetary totals (invoice billed
// amounts, draw totals, budget-line billed amounts) from allocation and
// draw-membership records, reporting and optionally repairing drift.
// Idempotent: a second run over unchanged records reports nothing.
type ReconciliationSvcFacade interface {
	ReconcileJob(ctx context.Context, jobID string, write bool, userID string) (*dto.ReconciliationReport, error)

	// ReconcileAll runs ReconcileJob over every active job (nightly batch).
	ReconcileAll(ctx context.Context, write bool, userID string) ([]dto.ReconciliationReport, error)
}
