package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
	"github.com/shopspring/decimal"
)

// reconciliationService recomputes every derived monetary total for a job
// from the allocation and draw-membership source records. Draw totals first,
// then invoice billed figures, then budget-line rollups, so later steps see
// corrected upstream values. Running twice over unchanged records finds
// nothing the second time.
type reconciliationService struct {
	invoiceRepo  portsrepo.InvoiceRepositoryWithTx
	drawRepo     portsrepo.DrawRepositoryFacade
	budgetRepo   portsrepo.BudgetRepositoryFacade
	activityRepo portsrepo.ActivityRepository
	now          func() time.Time
}

// NewReconciliationService creates a new reconciliation engine.
func NewReconciliationService(
	invoiceRepo portsrepo.InvoiceRepositoryWithTx,
	drawRepo portsrepo.DrawRepositoryFacade,
	budgetRepo portsrepo.BudgetRepositoryFacade,
	activityRepo portsrepo.ActivityRepository,
) portssvc.ReconciliationSvcFacade {
	return &reconciliationService{
		invoiceRepo:  invoiceRepo,
		drawRepo:     drawRepo,
		budgetRepo:   budgetRepo,
		activityRepo: activityRepo,
		now:          time.Now,
	}
}

var _ portssvc.ReconciliationSvcFacade = (*reconciliationService)(nil)

// ReconcileJob runs the three-step recompute for one job. With write false
// the run only reports drift; with write true each discrepancy is corrected
// in place.
func (s *reconciliationService) ReconcileJob(ctx context.Context, jobID string, write bool, userID string) (*dto.ReconciliationReport, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	invoices, err := s.invoiceRepo.ListInvoicesByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.InvoiceID
	}
	allocsByInv, err := s.invoiceRepo.FindAllocationsByInvoiceIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}

	report := &dto.ReconciliationReport{
		JobID:         jobID,
		RanAt:         s.now(),
		WriteMode:     write,
		Discrepancies: []dto.Discrepancy{},
	}

	if err := s.reconcileDraws(ctx, jobID, invoices, write, userID, report); err != nil {
		return nil, err
	}
	if err := s.reconcileInvoices(ctx, invoices, allocsByInv, write, userID, report); err != nil {
		return nil, err
	}
	if err := s.reconcileBudgetLines(ctx, jobID, invoices, allocsByInv, write, userID, report); err != nil {
		return nil, err
	}

	logger.Info("Reconciliation run finished",
		slog.String("job_id", jobID),
		slog.Bool("write", write),
		slog.Int("discrepancies", len(report.Discrepancies)),
		slog.Int("corrections", report.CorrectionsApplied))
	return report, nil
}

// ReconcileAll runs ReconcileJob over every active job.
func (s *reconciliationService) ReconcileAll(ctx context.Context, write bool, userID string) ([]dto.ReconciliationReport, error) {
	jobs, err := s.budgetRepo.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	reports := make([]dto.ReconciliationReport, 0, len(jobs))
	for _, job := range jobs {
		report, err := s.ReconcileJob(ctx, job.JobID, write, userID)
		if err != nil {
			// One bad job must not starve the rest of the batch.
			middleware.GetLoggerFromCtx(ctx).Error("Reconciliation failed for job",
				slog.String("job_id", job.JobID), slog.String("error", err.Error()))
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// reconcileDraws recomputes each draw's total as the sum of its member
// invoices' amounts.
func (s *reconciliationService) reconcileDraws(ctx context.Context, jobID string, invoices []domain.Invoice, write bool, userID string, report *dto.ReconciliationReport) error {
	draws, err := s.drawRepo.ListDrawsByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to list draws: %w", err)
	}

	memberTotals := make(map[string]decimal.Decimal, len(draws))
	for _, inv := range invoices {
		if inv.DrawID != nil {
			memberTotals[*inv.DrawID] = memberTotals[*inv.DrawID].Add(inv.Amount)
		}
	}

	for _, draw := range draws {
		derived := memberTotals[draw.DrawID]
		if money.ApproxEqual(draw.TotalAmount, derived) {
			continue
		}
		d := dto.Discrepancy{
			EntityType: "draw",
			EntityID:   draw.DrawID,
			Field:      "total_amount",
			Stored:     draw.TotalAmount,
			Derived:    derived,
		}
		if write {
			if err := s.drawRepo.UpdateDrawTotal(ctx, draw.DrawID, derived, userID); err != nil {
				return fmt.Errorf("failed to repair draw total: %w", err)
			}
			d.Corrected = true
			report.CorrectionsApplied++
		}
		report.Discrepancies = append(report.Discrepancies, d)
	}
	return nil
}

// reconcileInvoices recomputes each invoice's billed figure: the sum of its
// allocations while it belongs to a draw, zero otherwise.
func (s *reconciliationService) reconcileInvoices(ctx context.Context, invoices []domain.Invoice, allocsByInv map[string][]domain.Allocation, write bool, userID string, report *dto.ReconciliationReport) error {
	for i := range invoices {
		inv := &invoices[i]
		derived := decimal.Zero
		if inv.DrawID != nil {
			derived = domain.SumAllocations(allocsByInv[inv.InvoiceID])
		}
		if money.ApproxEqual(inv.BilledAmount, derived) {
			continue
		}
		d := dto.Discrepancy{
			EntityType: "invoice",
			EntityID:   inv.InvoiceID,
			Field:      "billed_amount",
			Stored:     inv.BilledAmount,
			Derived:    derived,
		}
		if write {
			if err := s.invoiceRepo.UpdateInvoiceBilled(ctx, inv.InvoiceID, derived, userID); err != nil {
				return fmt.Errorf("failed to repair invoice billed amount: %w", err)
			}
			d.Corrected = true
			report.CorrectionsApplied++
			s.appendRepairActivity(ctx, inv.InvoiceID, userID,
				fmt.Sprintf("billed_amount %s -> %s", money.FormatAmount(inv.BilledAmount), money.FormatAmount(derived)))
			// Downstream budget rollups read the corrected value.
			inv.BilledAmount = derived
		}
		report.Discrepancies = append(report.Discrepancies, d)
	}
	return nil
}

// reconcileBudgetLines rolls allocations of in-draw and paid invoices up into
// per-cost-code billed/paid figures, creating missing budget lines for cost
// codes that accumulated billings without a budget row.
func (s *reconciliationService) reconcileBudgetLines(ctx context.Context, jobID string, invoices []domain.Invoice, allocsByInv map[string][]domain.Allocation, write bool, userID string, report *dto.ReconciliationReport) error {
	billedByCode := make(map[string]decimal.Decimal)
	paidByCode := make(map[string]decimal.Decimal)
	for _, inv := range invoices {
		if inv.Status != domain.StatusInDraw && inv.Status != domain.StatusPaid {
			continue
		}
		for _, a := range allocsByInv[inv.InvoiceID] {
			billedByCode[a.CostCodeID] = billedByCode[a.CostCodeID].Add(a.Amount)
			if inv.Status == domain.StatusPaid {
				paidByCode[a.CostCodeID] = paidByCode[a.CostCodeID].Add(a.Amount)
			}
		}
	}

	lines, err := s.budgetRepo.FindBudgetLinesByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to list budget lines: %w", err)
	}
	lineByCode := make(map[string]domain.BudgetLine, len(lines))
	for _, line := range lines {
		lineByCode[line.CostCodeID] = line
	}

	for _, line := range lines {
		derivedBilled := billedByCode[line.CostCodeID]
		derivedPaid := paidByCode[line.CostCodeID]

		var drifted []dto.Discrepancy
		if !money.ApproxEqual(line.BilledAmount, derivedBilled) {
			drifted = append(drifted, dto.Discrepancy{
				EntityType: "budget_line",
				EntityID:   line.BudgetLineID,
				Field:      "billed_amount",
				Stored:     line.BilledAmount,
				Derived:    derivedBilled,
			})
		}
		if !money.ApproxEqual(line.PaidAmount, derivedPaid) {
			drifted = append(drifted, dto.Discrepancy{
				EntityType: "budget_line",
				EntityID:   line.BudgetLineID,
				Field:      "paid_amount",
				Stored:     line.PaidAmount,
				Derived:    derivedPaid,
			})
		}
		if len(drifted) == 0 {
			continue
		}
		if write {
			// One write repairs both figures; each drifted field is still
			// reported on its own.
			if err := s.budgetRepo.UpdateBudgetDerived(ctx, line.BudgetLineID, derivedBilled, derivedPaid, userID); err != nil {
				return fmt.Errorf("failed to repair budget line: %w", err)
			}
			for i := range drifted {
				drifted[i].Corrected = true
			}
			report.CorrectionsApplied += len(drifted)
		}
		report.Discrepancies = append(report.Discrepancies, drifted...)
	}

	// Cost codes with billings but no budget row surface as drift; in write
	// mode a zero-budget line is created to carry the figures.
	now := s.now()
	for costCodeID, billed := range billedByCode {
		if _, ok := lineByCode[costCodeID]; ok || billed.IsZero() {
			continue
		}
		d := dto.Discrepancy{
			EntityType: "budget_line",
			EntityID:   costCodeID,
			Field:      "billed_amount",
			Stored:     decimal.Zero,
			Derived:    billed,
		}
		if write {
			line := domain.BudgetLine{
				BudgetLineID:   uuid.NewString(),
				JobID:          jobID,
				CostCodeID:     costCodeID,
				BudgetedAmount: decimal.Zero,
				BilledAmount:   billed,
				PaidAmount:     paidByCode[costCodeID],
				AuditFields: domain.AuditFields{
					CreatedAt:     now,
					CreatedBy:     userID,
					LastUpdatedAt: now,
					LastUpdatedBy: userID,
				},
			}
			if err := s.budgetRepo.SaveBudgetLine(ctx, line); err != nil {
				return fmt.Errorf("failed to create budget line: %w", err)
			}
			d.Corrected = true
			report.CorrectionsApplied++
			report.BudgetLinesCreated++
		}
		report.Discrepancies = append(report.Discrepancies, d)
	}
	return nil
}

func (s *reconciliationService) appendRepairActivity(ctx context.Context, invoiceID, userID, detail string) {
	event := domain.ActivityEvent{
		EventID:     uuid.NewString(),
		InvoiceID:   invoiceID,
		Action:      domain.ActionReconRepaired,
		PerformedBy: userID,
		Detail:      detail,
		CreatedAt:   s.now(),
	}
	if err := s.activityRepo.AppendActivity(ctx, event); err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Failed to append activity",
			slog.String("invoice_id", invoiceID), slog.String("error", err.Error()))
	}
}
