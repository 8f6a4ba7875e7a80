package services

import (
	"context"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
)

// InvoiceSvcFacade is the invoice lifecycle service: intake, edit-session
// saves, the status state machine and its side effects.
type InvoiceSvcFacade interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, creatorUserID string) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)
	ListInvoicesByJob(ctx context.Context, jobID string) ([]dto.InvoiceResponse, error)

	// SaveInvoice commits an edit session under the optimistic version check.
	// The caller is expected to hold the advisory lock; the version check is
	// the final guard regardless.
	SaveInvoice(ctx context.Context, invoiceID string, req dto.SaveInvoiceRequest, userID string) (*dto.SaveInvoiceResponse, error)

	// Transition moves the invoice through the state machine, enforcing the
	// per-target preconditions and performing side effects (draw membership,
	// activity log, version bump).
	Transition(ctx context.Context, invoiceID string, req dto.TransitionRequest, userID string) (*dto.TransitionResponse, error)

	// Unlock returns a locked-status invoice to needs_review so it can be
	// edited again. Distinct from reviewing: an explicit modify intent.
	Unlock(ctx context.Context, invoiceID string, version int64, userID string) (*dto.TransitionResponse, error)

	// CloseOut writes off the billed-vs-amount shortfall.
	CloseOut(ctx context.Context, invoiceID string, req dto.CloseOutRequest, userID string) (*dto.TransitionResponse, error)

	// ApplyFieldHints records AI-suggested field values and their provenance.
	ApplyFieldHints(ctx context.Context, invoiceID string, req dto.ApplyHintsRequest, userID string) (*dto.InvoiceResponse, error)

	// UndoSave reverses a recent save while its undo token is still live.
	UndoSave(ctx context.Context, token string, userID string) (*dto.InvoiceResponse, error)

	DeleteInvoice(ctx context.Context, invoiceID string, userID string) error
	ListActivity(ctx context.Context, invoiceID string, limit int) ([]dto.ActivityEventResponse, error)
}
