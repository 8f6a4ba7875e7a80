package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
	"github.com/shopspring/decimal"
)

// fundingService resolves funding sources and CO-link requirements.
// Read-only and pure apart from repository fetches; linking decisions are
// written back by the invoice service as part of a save.
type fundingService struct {
	fundingRepo portsrepo.FundingRepositoryFacade
}

// NewFundingService creates a new funding resolver service.
func NewFundingService(fundingRepo portsrepo.FundingRepositoryFacade) portssvc.FundingSvcFacade {
	return &fundingService{fundingRepo: fundingRepo}
}

var _ portssvc.FundingSvcFacade = (*fundingService)(nil)

// ListFundingSources enumerates a job's POs and COs annotated with remaining
// balances. The excluded invoice's own allocations are left out of the billed
// figures so a live edit does not count against itself.
func (s *fundingService) ListFundingSources(ctx context.Context, jobID string, excludeInvoiceID string) (*dto.FundingSourcesResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	pos, err := s.fundingRepo.FindPurchaseOrdersByJob(ctx, jobID)
	if err != nil {
		logger.Error("Failed to fetch purchase orders", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to fetch purchase orders: %w", err)
	}
	cos, err := s.fundingRepo.FindChangeOrdersByJob(ctx, jobID)
	if err != nil {
		logger.Error("Failed to fetch change orders", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to fetch change orders: %w", err)
	}

	billedByPO, err := s.fundingRepo.SumBilledByPO(ctx, jobID, excludeInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum PO billings: %w", err)
	}
	billedByCO, err := s.fundingRepo.SumBilledByChangeOrder(ctx, jobID, excludeInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum change order billings: %w", err)
	}

	resp := &dto.FundingSourcesResponse{
		JobID:          jobID,
		PurchaseOrders: make([]dto.POFundingResponse, 0, len(pos)),
		ChangeOrders:   make([]dto.COFundingResponse, 0, len(cos)),
	}
	for _, po := range pos {
		po.PreviouslyBilled = billedByPO[po.POID]
		resp.PurchaseOrders = append(resp.PurchaseOrders, dto.ToPOFundingResponse(po))
	}
	for _, co := range cos {
		co.PreviouslyBilled = billedByCO[co.ChangeOrderID]
		resp.ChangeOrders = append(resp.ChangeOrders, dto.ToCOFundingResponse(co))
	}
	return resp, nil
}

// AnnotateAllocations applies the CO auto-suggestion and the needs_co_link
// flag to the given lines in place.
//
// Suggestion rule: when a line's cost code matches a PO line item that itself
// references a change order, and that CO exists and is not rejected, the CO
// is proposed as the allocation's co-link. This models "this PO was issued
// against this CO for this scope item". The proposal only fills an empty
// link; an explicit link is never overwritten.
func (s *fundingService) AnnotateAllocations(ctx context.Context, jobID string, allocations []domain.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}

	costCodeIDs := make([]string, 0, len(allocations))
	for _, a := range allocations {
		if a.CostCodeID != "" {
			costCodeIDs = append(costCodeIDs, a.CostCodeID)
		}
	}
	costCodes, err := s.fundingRepo.FindCostCodesByIDs(ctx, uniqueStrings(costCodeIDs))
	if err != nil {
		return fmt.Errorf("failed to fetch cost codes: %w", err)
	}

	pos, err := s.fundingRepo.FindPurchaseOrdersByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch purchase orders: %w", err)
	}
	posByID := make(map[string]domain.PurchaseOrder, len(pos))
	for _, po := range pos {
		posByID[po.POID] = po
	}

	cos, err := s.fundingRepo.FindChangeOrdersByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch change orders: %w", err)
	}
	cosByID := make(map[string]domain.ChangeOrder, len(cos))
	for _, co := range cos {
		cosByID[co.ChangeOrderID] = co
	}

	for i := range allocations {
		a := &allocations[i]

		if a.ChangeOrderID == nil && a.POID != nil {
			if suggested := suggestChangeOrder(posByID[*a.POID], a.CostCodeID, cosByID); suggested != nil {
				a.ChangeOrderID = suggested
			}
		}

		// Change-order-only cost codes must carry a usable CO link before
		// the invoice can be approved.
		a.NeedsCOLink = false
		if cc, ok := costCodes[a.CostCodeID]; ok && cc.IsChangeOrderOnly() {
			if a.ChangeOrderID == nil {
				a.NeedsCOLink = true
			} else if co, ok := cosByID[*a.ChangeOrderID]; !ok || co.Status == domain.COStatusRejected {
				a.NeedsCOLink = true
			}
		}
	}
	return nil
}

// suggestChangeOrder returns the CO id referenced by a PO line item matching
// the cost code, provided the CO exists and is not rejected.
func suggestChangeOrder(po domain.PurchaseOrder, costCodeID string, cos map[string]domain.ChangeOrder) *string {
	if costCodeID == "" {
		return nil
	}
	for _, li := range po.LineItems {
		if li.CostCodeID == nil || *li.CostCodeID != costCodeID || li.ChangeOrderID == nil {
			continue
		}
		if co, ok := cos[*li.ChangeOrderID]; ok && co.Status != domain.COStatusRejected {
			id := *li.ChangeOrderID
			return &id
		}
	}
	return nil
}

// CheckPOOverage verifies the allocations do not push any linked PO's
// remaining balance negative. The first offending PO (in allocation order) is
// reported with the figures a human needs to override consciously.
func (s *fundingService) CheckPOOverage(ctx context.Context, jobID string, invoiceID string, allocations []domain.Allocation) error {
	byPO := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, a := range allocations {
		if a.POID == nil {
			continue
		}
		if _, seen := byPO[*a.POID]; !seen {
			order = append(order, *a.POID)
		}
		byPO[*a.POID] = byPO[*a.POID].Add(a.Amount)
	}
	if len(order) == 0 {
		return nil
	}

	billedByPO, err := s.fundingRepo.SumBilledByPO(ctx, jobID, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to sum PO billings: %w", err)
	}

	for _, poID := range order {
		po, err := s.fundingRepo.FindPurchaseOrderByID(ctx, poID)
		if err != nil {
			return fmt.Errorf("failed to fetch PO %s: %w", poID, err)
		}
		remaining := po.TotalAmount.Sub(billedByPO[poID])
		allocated := byPO[poID]
		if money.GreaterWithTolerance(allocated, remaining) {
			return &POOverageError{
				POID:          po.POID,
				PONumber:      po.PONumber,
				Remaining:     remaining,
				InvoiceAmount: allocated,
				Overage:       allocated.Sub(remaining),
			}
		}
	}
	return nil
}

// uniqueStrings returns a slice containing only the unique strings from the input.
func uniqueStrings(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, str := range input {
		if _, ok := seen[str]; !ok {
			seen[str] = struct{}{}
			result = append(result, str)
		}
	}
	return result
}
