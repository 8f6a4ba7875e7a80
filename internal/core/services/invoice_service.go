package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
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
	// ErrNotEditable is returned when a save hits a locked-status invoice.
	ErrNotEditable = apperrors.NewAppError(409, "invoice is locked for edits; unlock it first", apperrors.ErrConflict)

	// ErrIllegalTransition is returned when the target status is not reachable
	// from the current one.
	ErrIllegalTransition = apperrors.NewAppError(409, "illegal status transition", apperrors.ErrConflict)

	// ErrPartialApprovalNote is returned when approving a partially allocated
	// invoice without a justification note.
	ErrPartialApprovalNote = apperrors.NewAppError(400, "partial approval requires a justification note", apperrors.ErrValidation)

	// ErrDenialReason is returned when denying without a reason.
	ErrDenialReason = apperrors.NewAppError(400, "denial requires a reason", apperrors.ErrValidation)

	// ErrUndoExpired is returned when the undo window has elapsed or the token
	// is unknown.
	ErrUndoExpired = apperrors.NewAppError(409, "this save can no longer be undone", apperrors.ErrConflict)

	// ErrSplitParentReadOnly is returned on attempts to edit a split parent.
	ErrSplitParentReadOnly = apperrors.NewAppError(409, "a split parent is read-only; edit its children or unsplit", apperrors.ErrConflict)

	// ErrNoShortfall is returned on a close-out attempt with nothing to write off.
	ErrNoShortfall = apperrors.NewAppError(409, "invoice has no billed shortfall to close out", apperrors.ErrConflict)

	// ErrCloseOutState is returned when closing out from a status other than
	// approved or in_draw.
	ErrCloseOutState = apperrors.NewAppError(409, "only approved or in-draw invoices can be closed out", apperrors.ErrConflict)
)

// undoEntry is a pre-save snapshot held in memory until its window lapses.
type undoEntry struct {
	invoiceID   string
	invoice     domain.Invoice
	allocations []domain.Allocation
	expiresAt   time.Time
}

// invoiceService implements the invoice lifecycle: intake, edit-session saves
// under optimistic versioning, and the status state machine with its side
// effects. Undo snapshots live in process memory; the window is short enough
// that losing them on restart only costs the undo affordance, never data.
type invoiceService struct {
	invoiceRepo  portsrepo.InvoiceRepositoryWithTx
	drawRepo     portsrepo.DrawRepositoryFacade
	activityRepo portsrepo.ActivityRepository
	fundingSvc   portssvc.FundingSvcFacade
	undoWindow   time.Duration
	now          func() time.Time

	mu    sync.Mutex
	undos map[string]undoEntry
}

// NewInvoiceService creates a new invoice lifecycle service.
func NewInvoiceService(
	invoiceRepo portsrepo.InvoiceRepositoryWithTx,
	drawRepo portsrepo.DrawRepositoryFacade,
	activityRepo portsrepo.ActivityRepository,
	fundingSvc portssvc.FundingSvcFacade,
	undoWindow time.Duration,
) portssvc.InvoiceSvcFacade {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		drawRepo:     drawRepo,
		activityRepo: activityRepo,
		fundingSvc:   fundingSvc,
		undoWindow:   undoWindow,
		now:          time.Now,
		undos:        make(map[string]undoEntry),
	}
}

var _ portssvc.InvoiceSvcFacade = (*invoiceService)(nil)

// CreateInvoice records a new invoice at intake.
func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, creatorUserID string) (*domain.Invoice, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	now := s.now()

	if req.Amount.IsNegative() {
		return nil, apperrors.NewAppError(400, "invoice amount must not be negative", apperrors.ErrValidation)
	}

	inv := domain.Invoice{
		InvoiceID:     uuid.NewString(),
		JobID:         req.JobID,
		VendorID:      req.VendorID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		InvoiceDate:   req.InvoiceDate,
		DueDate:       req.DueDate,
		Status:        domain.StatusIntake,
		BilledAmount:  decimal.Zero,
		PaidAmount:    decimal.Zero,
		Version:       1,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}

	if err := s.invoiceRepo.SaveInvoice(ctx, inv, nil); err != nil {
		logger.Error("Failed to create invoice", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.appendActivity(ctx, inv.InvoiceID, domain.ActionCreated, creatorUserID, "")

	logger.Info("Invoice created", slog.String("invoice_id", inv.InvoiceID))
	return &inv, nil
}

// GetInvoice retrieves one invoice with its allocations.
func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, allocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(inv, allocs)
	return &resp, nil
}

// ListInvoicesByJob retrieves a job's live invoices with their allocations.
func (s *invoiceService) ListInvoicesByJob(ctx context.Context, jobID string) ([]dto.InvoiceResponse, error) {
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

	out := make([]dto.InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = s.toResponse(&invoices[i], allocsByInv[invoices[i].InvoiceID])
	}
	return out, nil
}

// SaveInvoice commits an edit session. Header fields are applied, the
// allocation list replaced wholesale, the sum-at-or-under-cap invariant
// enforced (auto-reducing the first sibling line when needed), and the whole
// write made conditional on the version token read at session open.
func (s *invoiceService) SaveInvoice(ctx context.Context, invoiceID string, req dto.SaveInvoiceRequest, userID string) (*dto.SaveInvoiceResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	inv, priorAllocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsSplitParent {
		return nil, ErrSplitParentReadOnly
	}
	if !inv.Status.Editable() {
		return nil, ErrNotEditable
	}
	if req.Version != inv.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}

	snapshot := *inv
	snapshotAllocs := make([]domain.Allocation, len(priorAllocs))
	copy(snapshotAllocs, priorAllocs)

	now := s.now()
	s.applyHeaderFields(inv, req, now, userID)

	allocs := s.buildAllocations(inv, priorAllocs, req.Allocations, now, userID)

	session := NewEditSession(*inv, allocs)
	adjusted, err := session.rebalanceToCap(-1)
	if err != nil {
		return nil, apperrors.NewAppError(400, "allocations exceed the invoice's remaining amount", apperrors.ErrValidation)
	}
	allocs = session.Allocations

	if inv.JobID != nil {
		if err := s.fundingSvc.AnnotateAllocations(ctx, *inv.JobID, allocs); err != nil {
			return nil, err
		}
	}

	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, *inv, allocs, req.Version); err != nil {
		logger.Warn("Invoice save failed", slog.String("invoice_id", invoiceID), slog.String("error", err.Error()))
		return nil, err
	}
	inv.Version = req.Version + 1
	s.appendActivity(ctx, invoiceID, domain.ActionUpdated, userID, "")

	undo := s.registerUndo(invoiceID, snapshot, snapshotAllocs)

	resp := &dto.SaveInvoiceResponse{
		Invoice: s.toResponse(inv, allocs),
		Notification: dto.Notification{
			Type:    dto.NotifySuccess,
			Message: "Invoice saved",
		},
		Undo: undo,
	}
	if adjusted != nil {
		resp.AdjustedLine = &dto.RebalanceInfo{
			AdjustedIndex:  adjusted.AdjustedIndex,
			PreviousAmount: adjusted.PreviousAmount,
			NewAmount:      adjusted.NewAmount,
		}
		resp.Notification.Details = map[string]interface{}{
			"adjustedLine": adjusted.AdjustedIndex,
		}
	}
	return resp, nil
}

// Transition moves the invoice through the state machine.
func (s *invoiceService) Transition(ctx context.Context, invoiceID string, req dto.TransitionRequest, userID string) (*dto.TransitionResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	inv, allocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if req.Version != inv.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}

	target := domain.InvoiceStatus(strings.ToUpper(req.TargetStatus))
	if target == domain.StatusSplit {
		// Splitting is its own operation with its own request shape.
		return nil, ErrIllegalTransition
	}
	if !domain.CanTransition(inv.Status, target) {
		return nil, apperrors.NewAppError(409,
			fmt.Sprintf("cannot move invoice from %s to %s", inv.Status, target),
			apperrors.ErrConflict)
	}

	from := inv.Status
	var overrodeOverage *POOverageError
	var draw *domain.Draw
	switch target {
	case domain.StatusReadyForApproval:
		if err := s.validateReadyForApproval(inv, allocs); err != nil {
			return nil, err
		}
	case domain.StatusApproved:
		overrodeOverage, err = s.validateApproval(ctx, inv, allocs, req)
		if err != nil {
			return nil, err
		}
	case domain.StatusDenied:
		if strings.TrimSpace(req.Reason) == "" {
			return nil, ErrDenialReason
		}
	case domain.StatusInDraw:
		draw, err = s.resolveDraftDraw(ctx, inv, userID)
		if err != nil {
			return nil, err
		}
		inv.DrawID = &draw.DrawID
		inv.BilledAmount = domain.SumAllocations(allocs)
	}

	now := s.now()
	inv.Status = target
	inv.LastUpdatedAt = now
	inv.LastUpdatedBy = userID

	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, *inv, allocs, req.Version); err != nil {
		return nil, err
	}
	inv.Version = req.Version + 1

	if draw != nil {
		// The membership is committed; draw totals are derived figures the
		// reconciliation run recomputes from member invoices.
		newTotal := draw.TotalAmount.Add(inv.Amount)
		if err := s.drawRepo.UpdateDrawTotal(ctx, draw.DrawID, newTotal, userID); err != nil {
			logger.Warn("Failed to update draw total",
				slog.String("draw_id", draw.DrawID), slog.String("error", err.Error()))
		}
		s.appendActivity(ctx, invoiceID, domain.ActionAddedToDraw, userID,
			fmt.Sprintf("draw #%d", draw.DrawNumber))
	}

	detail := fmt.Sprintf("%s -> %s", from, target)
	s.appendActivity(ctx, invoiceID, domain.ActionStatusChanged, userID, detail)
	if target == domain.StatusDenied {
		s.appendActivity(ctx, invoiceID, domain.ActionDenied, userID, req.Reason)
	}
	if overrodeOverage != nil {
		s.appendActivity(ctx, invoiceID, domain.ActionOverrodePO, userID, overrodeOverage.Error())
	}

	logger.Info("Invoice status changed",
		slog.String("invoice_id", invoiceID),
		slog.String("from", string(from)),
		slog.String("to", string(target)))

	return &dto.TransitionResponse{
		Invoice: s.toResponse(inv, allocs),
		Notification: dto.Notification{
			Type:    dto.NotifySuccess,
			Message: fmt.Sprintf("Invoice moved to %s", target),
		},
	}, nil
}

// Unlock returns a locked-status invoice to needs_review. This is the
// explicit modify intent for reviewed or approved invoices; in-draw invoices
// stay locked until removed from their draw.
func (s *invoiceService) Unlock(ctx context.Context, invoiceID string, version int64, userID string) (*dto.TransitionResponse, error) {
	inv, allocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if version != inv.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}
	if !inv.Status.Locked() || inv.Status == domain.StatusInDraw {
		return nil, apperrors.NewAppError(409, "invoice is not in an unlockable status", apperrors.ErrConflict)
	}

	from := inv.Status
	now := s.now()
	inv.Status = domain.StatusNeedsReview
	inv.LastUpdatedAt = now
	inv.LastUpdatedBy = userID

	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, *inv, allocs, version); err != nil {
		return nil, err
	}
	inv.Version = version + 1
	s.appendActivity(ctx, invoiceID, domain.ActionUnlocked, userID, fmt.Sprintf("unlocked from %s", from))

	return &dto.TransitionResponse{
		Invoice: s.toResponse(inv, allocs),
		Notification: dto.Notification{
			Type:    dto.NotifySuccess,
			Message: "Invoice unlocked for edits",
		},
	}, nil
}

// CloseOut writes off the billed-vs-amount shortfall with a reason code.
func (s *invoiceService) CloseOut(ctx context.Context, invoiceID string, req dto.CloseOutRequest, userID string) (*dto.TransitionResponse, error) {
	inv, allocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if req.Version != inv.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}
	if inv.Status != domain.StatusApproved && inv.Status != domain.StatusInDraw {
		return nil, ErrCloseOutState
	}
	if inv.IsClosedOut() {
		return nil, apperrors.NewAppError(409, "invoice is already closed out", apperrors.ErrConflict)
	}

	shortfall := inv.Amount.Sub(inv.BilledAmount)
	if shortfall.LessThan(money.Epsilon) {
		return nil, ErrNoShortfall
	}

	reason := domain.CloseOutReason(strings.ToUpper(req.ReasonCode))
	switch reason {
	case domain.CloseOutShortPaid, domain.CloseOutVendorCredit, domain.CloseOutDisputed:
	case domain.CloseOutReasonOther:
		if strings.TrimSpace(req.Notes) == "" {
			return nil, apperrors.NewAppError(400, "close-out reason OTHER requires notes", apperrors.ErrValidation)
		}
	default:
		return nil, apperrors.NewAppError(400, "unknown close-out reason code", apperrors.ErrValidation)
	}

	now := s.now()
	inv.ClosedOutAt = &now
	inv.ClosedOutBy = &userID
	inv.ClosedOutReason = &reason
	inv.CloseOutNotes = req.Notes
	inv.LastUpdatedAt = now
	inv.LastUpdatedBy = userID

	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, *inv, allocs, req.Version); err != nil {
		return nil, err
	}
	inv.Version = req.Version + 1
	s.appendActivity(ctx, invoiceID, domain.ActionClosedOut, userID,
		fmt.Sprintf("%s written off (%s)", money.FormatAmount(shortfall), reason))

	return &dto.TransitionResponse{
		Invoice: s.toResponse(inv, allocs),
		Notification: dto.Notification{
			Type:    dto.NotifySuccess,
			Message: fmt.Sprintf("Wrote off %s", money.FormatAmount(shortfall)),
		},
	}, nil
}

// hintableFields maps accepted hint names to header field setters. Unknown
// fields still get provenance recorded but change nothing.
var hintableFields = map[string]func(*domain.Invoice, string) bool{
	"invoice_number": func(inv *domain.Invoice, v string) bool {
		inv.InvoiceNumber = v
		return true
	},
	"amount": func(inv *domain.Invoice, v string) bool {
		amount, err := money.ParseAmount(v)
		if err != nil {
			return false
		}
		inv.Amount = amount
		return true
	},
	"invoice_date": func(inv *domain.Invoice, v string) bool {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return false
		}
		inv.InvoiceDate = &t
		return true
	},
	"due_date": func(inv *domain.Invoice, v string) bool {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return false
		}
		inv.DueDate = &t
		return true
	},
}

// ApplyFieldHints records AI-supplied field suggestions and, for known header
// fields on an editable invoice, applies the suggested values.
func (s *invoiceService) ApplyFieldHints(ctx context.Context, invoiceID string, req dto.ApplyHintsRequest, userID string) (*dto.InvoiceResponse, error) {
	inv, allocs, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if req.Version != inv.Version {
		return nil, apperrors.NewAppError(409, "invoice was changed by someone else; reload before saving", apperrors.ErrVersionConflict)
	}
	if !inv.Status.Editable() {
		return nil, ErrNotEditable
	}

	if inv.FieldOrigins == nil {
		inv.FieldOrigins = make(map[string]domain.FieldValue)
	}
	applied := make([]string, 0, len(req.Hints))
	for _, hint := range req.Hints {
		name := strings.ToLower(hint.FieldName)
		if setter, ok := hintableFields[name]; ok {
			if !setter(inv, hint.SuggestedValue) {
				continue
			}
		}
		inv.FieldOrigins[name] = domain.FieldValue{
			Value:      hint.SuggestedValue,
			Origin:     domain.OriginAISuggested,
			Confidence: hint.Confidence,
		}
		applied = append(applied, name)
	}

	now := s.now()
	inv.LastUpdatedAt = now
	inv.LastUpdatedBy = userID
	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, *inv, allocs, req.Version); err != nil {
		return nil, err
	}
	inv.Version = req.Version + 1
	s.appendActivity(ctx, invoiceID, domain.ActionHintsApplied, userID, strings.Join(applied, ", "))

	resp := s.toResponse(inv, allocs)
	return &resp, nil
}

// UndoSave restores the pre-save snapshot while its token is live.
func (s *invoiceService) UndoSave(ctx context.Context, token string, userID string) (*dto.InvoiceResponse, error) {
	s.mu.Lock()
	entry, ok := s.undos[token]
	if ok {
		delete(s.undos, token)
	}
	s.mu.Unlock()

	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrUndoExpired
	}

	current, _, err := s.load(ctx, entry.invoiceID)
	if err != nil {
		return nil, err
	}

	restored := entry.invoice
	now := s.now()
	restored.LastUpdatedAt = now
	restored.LastUpdatedBy = userID
	if err := s.invoiceRepo.UpdateInvoiceWithVersion(ctx, restored, entry.allocations, current.Version); err != nil {
		return nil, err
	}
	restored.Version = current.Version + 1
	s.appendActivity(ctx, entry.invoiceID, domain.ActionUndoneSave, userID, "")

	resp := s.toResponse(&restored, entry.allocations)
	return &resp, nil
}

// DeleteInvoice soft-deletes the invoice. Draw members cannot be deleted.
func (s *invoiceService) DeleteInvoice(ctx context.Context, invoiceID string, userID string) error {
	inv, _, err := s.load(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.DrawID != nil {
		return apperrors.NewAppError(409, "invoice belongs to a draw and cannot be deleted", apperrors.ErrConflict)
	}
	if err := s.invoiceRepo.SoftDeleteInvoice(ctx, invoiceID, userID, s.now()); err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

// ListActivity retrieves the invoice's activity feed, newest first.
func (s *invoiceService) ListActivity(ctx context.Context, invoiceID string, limit int) ([]dto.ActivityEventResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := s.activityRepo.ListActivityByInvoice(ctx, invoiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return dto.ToActivityEventResponses(events), nil
}

// --- internals ---

func (s *invoiceService) load(ctx context.Context, invoiceID string) (*domain.Invoice, []domain.Allocation, error) {
	inv, err := s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	allocs, err := s.invoiceRepo.FindAllocationsByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}
	return inv, allocs, nil
}

// applyHeaderFields copies the request's set fields onto the invoice and
// flips AI provenance to overridden when a human changes a suggested value.
func (s *invoiceService) applyHeaderFields(inv *domain.Invoice, req dto.SaveInvoiceRequest, now time.Time, userID string) {
	if req.JobID != nil {
		inv.JobID = req.JobID
	}
	if req.VendorID != nil {
		inv.VendorID = req.VendorID
	}
	if req.InvoiceNumber != nil {
		s.markOverridden(inv, "invoice_number", *req.InvoiceNumber)
		inv.InvoiceNumber = *req.InvoiceNumber
	}
	if req.Amount != nil {
		s.markOverridden(inv, "amount", money.FormatAmount(*req.Amount))
		inv.Amount = *req.Amount
	}
	if req.InvoiceDate != nil {
		s.markOverridden(inv, "invoice_date", req.InvoiceDate.Format("2006-01-02"))
		inv.InvoiceDate = req.InvoiceDate
	}
	if req.DueDate != nil {
		s.markOverridden(inv, "due_date", req.DueDate.Format("2006-01-02"))
		inv.DueDate = req.DueDate
	}
	inv.LastUpdatedAt = now
	inv.LastUpdatedBy = userID
}

func (s *invoiceService) markOverridden(inv *domain.Invoice, field, newValue string) {
	fv, ok := inv.FieldOrigins[field]
	if !ok || fv.Origin != domain.OriginAISuggested || fv.Value == newValue {
		return
	}
	fv.Overridden = true
	fv.Origin = domain.OriginManual
	inv.FieldOrigins[field] = fv
}

// buildAllocations materializes the request's replacement allocation list,
// reusing IDs for lines the client carried over and minting new ones.
func (s *invoiceService) buildAllocations(inv *domain.Invoice, prior []domain.Allocation, inputs []dto.AllocationInput, now time.Time, userID string) []domain.Allocation {
	priorByID := make(map[string]domain.Allocation, len(prior))
	for _, a := range prior {
		priorByID[a.AllocationID] = a
	}

	allocs := make([]domain.Allocation, 0, len(inputs))
	for _, in := range inputs {
		a := domain.Allocation{
			AllocationID:  in.AllocationID,
			InvoiceID:     inv.InvoiceID,
			CostCodeID:    in.CostCodeID,
			Amount:        in.Amount,
			POID:          in.POID,
			ChangeOrderID: in.ChangeOrderID,
			Notes:         in.Notes,
			Provenance:    domain.AllocationProvenance(in.Provenance),
		}
		if a.Amount.IsNegative() {
			a.Amount = decimal.Zero
		}
		if a.Provenance == "" {
			a.Provenance = domain.ProvenanceManual
		}
		if existing, ok := priorByID[a.AllocationID]; ok {
			a.CreatedAt = existing.CreatedAt
			a.CreatedBy = existing.CreatedBy
		} else {
			a.AllocationID = uuid.NewString()
			a.CreatedAt = now
			a.CreatedBy = userID
		}
		a.LastUpdatedAt = now
		a.LastUpdatedBy = userID
		allocs = append(allocs, a)
	}
	return allocs
}

// validateReadyForApproval enforces the field completeness required before an
// invoice may enter review.
func (s *invoiceService) validateReadyForApproval(inv *domain.Invoice, allocs []domain.Allocation) error {
	fields := map[string]string{}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		fields["invoiceNumber"] = "required"
	}
	if !inv.Amount.IsPositive() {
		fields["amount"] = "must be positive"
	}
	if inv.InvoiceDate == nil {
		fields["invoiceDate"] = "required"
	}
	if inv.JobID == nil {
		fields["jobID"] = "required"
	}
	hasCoded := false
	for _, a := range allocs {
		if a.CostCodeID != "" {
			hasCoded = true
			break
		}
	}
	if !hasCoded {
		fields["allocations"] = "at least one line with a cost code is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Target: domain.StatusReadyForApproval, Fields: fields}
	}
	return nil
}

// validateApproval enforces the full approval preconditions: review-level
// completeness plus vendor, cap, CO links, partial-approval justification and
// the PO overage soft block. The overage check always runs; an override does
// not skip it but converts the block into a non-nil return value so the
// caller can record the overridden figures.
func (s *invoiceService) validateApproval(ctx context.Context, inv *domain.Invoice, allocs []domain.Allocation, req dto.TransitionRequest) (*POOverageError, error) {
	if err := s.validateReadyForApproval(inv, allocs); err != nil {
		return nil, err
	}
	if inv.VendorID == nil {
		return nil, &ValidationError{Target: domain.StatusApproved, Fields: map[string]string{"vendorID": "required"}}
	}

	total := domain.SumAllocations(allocs)
	capAmt := inv.RemainingCap()
	if money.GreaterWithTolerance(total, capAmt) {
		return nil, &ValidationError{Target: domain.StatusApproved, Fields: map[string]string{
			"allocations": fmt.Sprintf("total %s exceeds remaining amount %s",
				money.FormatAmount(total), money.FormatAmount(capAmt)),
		}}
	}
	if capAmt.Sub(total).GreaterThanOrEqual(money.Epsilon) && strings.TrimSpace(req.Note) == "" {
		return nil, ErrPartialApprovalNote
	}

	if inv.JobID != nil {
		if err := s.fundingSvc.AnnotateAllocations(ctx, *inv.JobID, allocs); err != nil {
			return nil, err
		}
		for _, a := range allocs {
			if a.NeedsCOLink {
				return nil, &ValidationError{Target: domain.StatusApproved, Fields: map[string]string{
					"allocations": fmt.Sprintf("cost code %s requires a change order link", a.CostCodeID),
				}}
			}
		}
		if err := s.fundingSvc.CheckPOOverage(ctx, *inv.JobID, inv.InvoiceID, allocs); err != nil {
			var overage *POOverageError
			if errors.As(err, &overage) && req.OverridePOOverage {
				return overage, nil
			}
			return nil, err
		}
	}
	return nil, nil
}

// resolveDraftDraw finds the job's open draft draw, creating the next-numbered
// one when none exists. The caller commits the invoice's membership before the
// draw total is touched; a lost version race leaves at worst an empty draft.
func (s *invoiceService) resolveDraftDraw(ctx context.Context, inv *domain.Invoice, userID string) (*domain.Draw, error) {
	if inv.JobID == nil {
		return nil, apperrors.NewAppError(409, "invoice has no job; cannot join a draw", apperrors.ErrConflict)
	}
	jobID := *inv.JobID
	now := s.now()

	draw, err := s.drawRepo.FindDraftDrawByJob(ctx, jobID)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to fetch draft draw: %w", err)
		}
		existing, err := s.drawRepo.ListDrawsByJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to list draws: %w", err)
		}
		draw = &domain.Draw{
			DrawID:      uuid.NewString(),
			JobID:       jobID,
			DrawNumber:  len(existing) + 1,
			Status:      domain.DrawDraft,
			TotalAmount: decimal.Zero,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     userID,
				LastUpdatedAt: now,
				LastUpdatedBy: userID,
			},
		}
		if err := s.drawRepo.SaveDraw(ctx, *draw); err != nil {
			return nil, fmt.Errorf("failed to create draw: %w", err)
		}
	}
	return draw, nil
}

func (s *invoiceService) registerUndo(invoiceID string, inv domain.Invoice, allocs []domain.Allocation) *dto.UndoToken {
	token := uuid.NewString()
	expires := s.now().Add(s.undoWindow)

	s.mu.Lock()
	for t, e := range s.undos {
		if s.now().After(e.expiresAt) {
			delete(s.undos, t)
		}
	}
	s.undos[token] = undoEntry{
		invoiceID:   invoiceID,
		invoice:     inv,
		allocations: allocs,
		expiresAt:   expires,
	}
	s.mu.Unlock()

	return &dto.UndoToken{
		Token:            token,
		ExpiresAt:        expires,
		RemainingSeconds: int(s.undoWindow.Seconds()),
	}
}

func (s *invoiceService) appendActivity(ctx context.Context, invoiceID string, action domain.ActivityAction, userID, detail string) {
	event := domain.ActivityEvent{
		EventID:     uuid.NewString(),
		InvoiceID:   invoiceID,
		Action:      action,
		PerformedBy: userID,
		Detail:      detail,
		CreatedAt:   s.now(),
	}
	if err := s.activityRepo.AppendActivity(ctx, event); err != nil {
		// The activity log is informational; a failed append never fails the
		// operation it describes.
		middleware.GetLoggerFromCtx(ctx).Warn("Failed to append activity",
			slog.String("invoice_id", invoiceID), slog.String("error", err.Error()))
	}
}

func (s *invoiceService) toResponse(inv *domain.Invoice, allocs []domain.Allocation) dto.InvoiceResponse {
	fully := money.ApproxEqual(domain.SumAllocations(allocs), inv.RemainingCap()) && inv.Amount.IsPositive()
	return dto.ToInvoiceResponse(inv, allocs, fully)
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, apperrors.ErrNotFound)
}
