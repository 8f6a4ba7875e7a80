package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the closed set of lifecycle states for a vendor invoice.
// Transitions are validated against the table below rather than compared as
// free-form strings.
type InvoiceStatus string

const (
	StatusIntake           InvoiceStatus = "INTAKE"
	StatusReceived         InvoiceStatus = "RECEIVED" // legacy intake alias, still editable
	StatusNeedsReview      InvoiceStatus = "NEEDS_REVIEW"
	StatusReadyForApproval InvoiceStatus = "READY_FOR_APPROVAL"
	StatusApproved         InvoiceStatus = "APPROVED"
	StatusDenied           InvoiceStatus = "DENIED"
	StatusInDraw           InvoiceStatus = "IN_DRAW"
	StatusPaid             InvoiceStatus = "PAID" // reached externally once a draw pays out
	StatusSplit            InvoiceStatus = "SPLIT"
)

// statusTransitions is the legal transition table. A target absent from the
// source's list is an illegal transition regardless of field validity.
var statusTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusIntake:           {StatusNeedsReview},
	StatusReceived:         {StatusNeedsReview, StatusReadyForApproval},
	StatusNeedsReview:      {StatusReadyForApproval, StatusSplit},
	StatusReadyForApproval: {StatusApproved, StatusDenied, StatusNeedsReview},
	StatusApproved:         {StatusInDraw, StatusDenied},
	StatusDenied:           {StatusNeedsReview, StatusReadyForApproval, StatusSplit},
	StatusInDraw:           {StatusPaid},
	StatusPaid:             {},
	StatusSplit:            {StatusNeedsReview}, // unsplit only
}

// CanTransition reports whether moving from -> to is in the transition table.
func CanTransition(from, to InvoiceStatus) bool {
	for _, t := range statusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Editable reports whether the status allows free field and allocation edits.
// Locked statuses require an explicit unlock before edits are accepted.
func (s InvoiceStatus) Editable() bool {
	switch s {
	case StatusIntake, StatusReceived, StatusNeedsReview, StatusDenied:
		return true
	}
	return false
}

// Locked reports whether the status is a reviewing/approved state that
// rejects edits until unlocked.
func (s InvoiceStatus) Locked() bool {
	switch s {
	case StatusReadyForApproval, StatusApproved, StatusInDraw:
		return true
	}
	return false
}

// AtOrPastApproval reports whether the status has reached approval. Split
// parents may not be unsplit once any child is at or past this point.
func (s InvoiceStatus) AtOrPastApproval() bool {
	switch s {
	case StatusApproved, StatusInDraw, StatusPaid:
		return true
	}
	return false
}

// FieldOrigin records where an editable field's current value came from.
type FieldOrigin string

const (
	OriginManual      FieldOrigin = "MANUAL"
	OriginAISuggested FieldOrigin = "AI_SUGGESTED"
)

// FieldValue is per-field provenance bookkeeping for AI-suggested values.
// The extraction collaborator supplies suggestions; the engine only records
// them and whether a human later overrode them.
type FieldValue struct {
	Value      string      `json:"value"`
	Origin     FieldOrigin `json:"origin"`
	Confidence float64     `json:"confidence,omitempty"` // set when Origin is AI_SUGGESTED
	Overridden bool        `json:"overridden"`
}

// CloseOutReason is the reason code recorded on a write-off.
type CloseOutReason string

const (
	CloseOutShortPaid    CloseOutReason = "SHORT_PAID"
	CloseOutVendorCredit CloseOutReason = "VENDOR_CREDIT"
	CloseOutDisputed     CloseOutReason = "DISPUTED"
	CloseOutReasonOther  CloseOutReason = "OTHER"
)

// Invoice is a vendor invoice tracked through the approval lifecycle.
// BilledAmount and PaidAmount are derived caches recomputed by the
// reconciliation engine; allocations and draw membership are the source of
// truth. Version is the optimistic-lock token: every successful save bumps it
// and every conditional write checks it.
type Invoice struct {
	InvoiceID       string          `json:"invoiceID"`
	JobID           *string         `json:"jobID,omitempty"` // nullable until assigned
	VendorID        *string         `json:"vendorID,omitempty"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	Amount          decimal.Decimal `json:"amount"` // face value
	InvoiceDate     *time.Time      `json:"invoiceDate,omitempty"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	Status          InvoiceStatus   `json:"status"`
	BilledAmount    decimal.Decimal `json:"billedAmount"` // derived: allocated into a draw
	PaidAmount      decimal.Decimal `json:"paidAmount"`   // derived
	Version         int64           `json:"version"`
	DrawID          *string         `json:"drawID,omitempty"`
	ParentInvoiceID *string         `json:"parentInvoiceID,omitempty"`
	IsSplitParent   bool            `json:"isSplitParent"`
	ClosedOutAt     *time.Time      `json:"closedOutAt,omitempty"`
	ClosedOutBy     *string         `json:"closedOutBy,omitempty"`
	ClosedOutReason *CloseOutReason `json:"closedOutReason,omitempty"`
	CloseOutNotes   string          `json:"closeOutNotes,omitempty"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"` // tombstone, never hard-deleted
	// FieldOrigins tracks AI-suggested field provenance keyed by field name.
	FieldOrigins map[string]FieldValue `json:"fieldOrigins,omitempty"`
	AuditFields
}

// RemainingCap is the amount still available for allocation coding:
// face value minus whatever has already been billed or paid, floored at zero.
func (inv Invoice) RemainingCap() decimal.Decimal {
	processed := inv.BilledAmount
	if inv.PaidAmount.GreaterThan(processed) {
		processed = inv.PaidAmount
	}
	cap := inv.Amount.Sub(processed)
	if cap.IsNegative() {
		return decimal.Zero
	}
	return cap
}

// IsClosedOut reports whether the invoice has been written off.
func (inv Invoice) IsClosedOut() bool {
	return inv.ClosedOutAt != nil
}
