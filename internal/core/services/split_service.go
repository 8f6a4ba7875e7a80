package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
	"github.com/shopspring/decimal"
)

var (
	// ErrSplitSumMismatch is returned when target amounts do not sum to the
	// parent's amount within tolerance.
	ErrSplitSumMismatch = apperrors.NewAppError(400, "split amounts must sum to the invoice amount", apperrors.ErrValidation)

	// ErrChildAdvanced is returned when unsplitting would destroy a child that
	// has reached approval.
	ErrChildAdvanced = apperrors.NewAppError(409, "cannot unsplit: a child invoice has reached approval", apperrors.ErrConflict)

	// ErrNotSplitParent is returned when unsplitting an ordinary invoice.
	ErrNotSplitParent = apperrors.NewAppError(409, "invoice is not a split parent", apperrors.ErrConflict)
)

// splitService divides one invoice across jobs and reverses that division
// while no child has advanced past review.
type splitService struct {
	invoiceRepo  portsrepo.InvoiceRepositoryWithTx
	activityRepo portsrepo.ActivityRepository
	now          func() time.Time
}

// NewSplitService creates a new split service.
func NewSplitService(invoiceRepo portsrepo.InvoiceRepositoryWithTx, activityRepo portsrepo.ActivityRepository) portssvc.SplitSvcFacade {
	return &splitService{
		invoiceRepo:  invoiceRepo,
		activityRepo: activityRepo,
		now:          time.Now,
	}
}

var _ portssvc.SplitSvcFacade = (*splitService)(nil)

// Split carves the invoice into child invoices, one per target. The parent
// enters the split terminal status and becomes read-only; its allocations are
// retired with it since coding restarts on the children.
func (s *splitService) Split(ctx context.Context, invoiceID string, req dto.SplitInvoiceRequest, userID string) (*dto.SplitInvoiceResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	parent, err := s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if req.Version != parent.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}
	if parent.IsSplitParent {
		return nil, apperrors.NewAppError(409, "invoice is already split", apperrors.ErrConflict)
	}
	if parent.ParentInvoiceID != nil {
		return nil, apperrors.NewAppError(409, "a split child cannot itself be split", apperrors.ErrConflict)
	}
	if !domain.CanTransition(parent.Status, domain.StatusSplit) {
		return nil, apperrors.NewAppError(409,
			fmt.Sprintf("cannot split an invoice in status %s", parent.Status),
			apperrors.ErrConflict)
	}
	if len(req.Targets) < 2 {
		return nil, apperrors.NewAppError(400, "a split requires at least two targets", apperrors.ErrValidation)
	}

	sum := decimal.Zero
	for _, t := range req.Targets {
		if !t.Amount.IsPositive() {
			return nil, apperrors.NewAppError(400, "each split amount must be positive", apperrors.ErrValidation)
		}
		sum = sum.Add(t.Amount)
	}
	if !money.ApproxEqual(sum, parent.Amount) {
		return nil, ErrSplitSumMismatch
	}

	now := s.now()
	children := make([]domain.Invoice, len(req.Targets))
	for i, t := range req.Targets {
		jobID := t.JobID
		children[i] = domain.Invoice{
			InvoiceID:       uuid.NewString(),
			JobID:           &jobID,
			VendorID:        parent.VendorID,
			InvoiceNumber:   fmt.Sprintf("%s-%d", parent.InvoiceNumber, i+1),
			Amount:          t.Amount,
			InvoiceDate:     parent.InvoiceDate,
			DueDate:         parent.DueDate,
			Status:          domain.StatusNeedsReview,
			BilledAmount:    decimal.Zero,
			PaidAmount:      decimal.Zero,
			Version:         1,
			ParentInvoiceID: &parent.InvoiceID,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		}
	}

	parentCopy := *parent
	parentCopy.Status = domain.StatusSplit
	parentCopy.IsSplitParent = true
	parentCopy.LastUpdatedAt = now
	parentCopy.LastUpdatedBy = userID

	// The parent flip and the children land together or not at all; a split
	// parent without children is an unreachable state.
	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin split transaction: %w", err)
	}
	defer s.invoiceRepo.Rollback(ctx, tx)

	if err := s.invoiceRepo.UpdateInvoiceWithVersionInTx(ctx, tx, parentCopy, nil, req.Version); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveInvoicesInTx(ctx, tx, children); err != nil {
		return nil, fmt.Errorf("failed to create split children: %w", err)
	}
	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit split: %w", err)
	}
	parentCopy.Version = req.Version + 1

	s.appendActivity(ctx, parent.InvoiceID, domain.ActionSplit, userID,
		fmt.Sprintf("split into %d invoices", len(children)))

	logger.Info("Invoice split",
		slog.String("invoice_id", parent.InvoiceID),
		slog.Int("children", len(children)))

	resp := &dto.SplitInvoiceResponse{
		Parent: dto.ToInvoiceResponse(&parentCopy, nil, false),
	}
	for i := range children {
		resp.Children = append(resp.Children, dto.ToInvoiceResponse(&children[i], nil, false))
	}
	return resp, nil
}

// Unsplit deletes the children and returns the parent to needs_review.
// Refused once any child is at or past approval; their coding is then part of
// the job's financial record.
func (s *splitService) Unsplit(ctx context.Context, parentInvoiceID string, version int64, userID string) (*dto.InvoiceResponse, error) {
	parent, err := s.invoiceRepo.FindInvoiceByID(ctx, parentInvoiceID)
	if err != nil {
		return nil, err
	}
	if version != parent.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}
	if !parent.IsSplitParent {
		return nil, ErrNotSplitParent
	}

	children, err := s.invoiceRepo.FindChildInvoices(ctx, parentInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch split children: %w", err)
	}
	for _, child := range children {
		if child.Status.AtOrPastApproval() {
			return nil, ErrChildAdvanced
		}
	}

	now := s.now()
	parentCopy := *parent
	parentCopy.Status = domain.StatusNeedsReview
	parentCopy.IsSplitParent = false
	parentCopy.LastUpdatedAt = now
	parentCopy.LastUpdatedBy = userID

	// Reverting the parent and deleting the children is one atomic step, so
	// children are never left orphaned under a non-split parent.
	tx, err := s.invoiceRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin unsplit transaction: %w", err)
	}
	defer s.invoiceRepo.Rollback(ctx, tx)

	if err := s.invoiceRepo.UpdateInvoiceWithVersionInTx(ctx, tx, parentCopy, nil, version); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.DeleteChildInvoicesInTx(ctx, tx, parentInvoiceID); err != nil {
		return nil, fmt.Errorf("failed to delete split children: %w", err)
	}
	if err := s.invoiceRepo.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit unsplit: %w", err)
	}
	parentCopy.Version = version + 1

	s.appendActivity(ctx, parentInvoiceID, domain.ActionUnsplit, userID,
		fmt.Sprintf("removed %d child invoices", len(children)))

	resp := dto.ToInvoiceResponse(&parentCopy, nil, false)
	return &resp, nil
}

func (s *splitService) appendActivity(ctx context.Context, invoiceID string, action domain.ActivityAction, userID, detail string) {
	event := domain.ActivityEvent{
		EventID:     uuid.NewString(),
		InvoiceID:   invoiceID,
		Action:      action,
		PerformedBy: userID,
		Detail:      detail,
		CreatedAt:   s.now(),
	}
	if err := s.activityRepo.AppendActivity(ctx, event); err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Failed to append activity",
			slog.String("invoice_id", invoiceID), slog.String("error", err.Error()))
	}
}
