package services

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
)

// FundingSvcFacade resolves funding sources (POs and COs with remaining
// balances) and annotates allocations with CO-link requirements. Read-only:
// actual linking is a caller decision written back to the allocation.
type FundingSvcFacade interface {
	// ListFundingSources enumerates a job's POs and COs, each annotated with
	// remaining = total − previously billed, excluding excludeInvoiceID's
	// own allocations from the billed figures.
	ListFundingSources(ctx context.Context, jobID string, excludeInvoiceID string) (*dto.FundingSourcesResponse, error)

	// AnnotateAllocations applies CO auto-suggestion and the needs_co_link
	// flag to the given lines in place.
	AnnotateAllocations(ctx context.Context, jobID string, allocations []domain.Allocation) error

	// CheckPOOverage verifies that the allocations do not push any linked
	// PO's remaining balance negative. Returns a *services.POOverageError
	// describing the first offending PO.
	CheckPOOverage(ctx context.Context, jobID string, invoiceID string, allocations []domain.Allocation) error
}
