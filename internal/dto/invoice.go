package dto

import (
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AllocationInput is one allocation line in a save request.
type AllocationInput struct {
	AllocationID  string          `json:"allocationID,omitempty"`
	CostCodeID    string          `json:"costCodeID" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	POID          *string         `json:"poID,omitempty"`
	ChangeOrderID *string         `json:"changeOrderID,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Provenance    string          `json:"provenance,omitempty"`
}

// CreateInvoiceRequest creates a new invoice at intake.
type CreateInvoiceRequest struct {
	JobID         *string         `json:"jobID,omitempty"`
	VendorID      *string         `json:"vendorID,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceDate   *time.Time      `json:"invoiceDate,omitempty"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
}

// SaveInvoiceRequest commits an edit session: header fields plus the full
// replacement allocation list, carrying the version token read at open.
type SaveInvoiceRequest struct {
	Version       int64             `json:"version" binding:"required"`
	JobID         *string           `json:"jobID,omitempty"`
	VendorID      *string           `json:"vendorID,omitempty"`
	InvoiceNumber *string           `json:"invoiceNumber,omitempty"`
	Amount        *decimal.Decimal  `json:"amount,omitempty"`
	InvoiceDate   *time.Time        `json:"invoiceDate,omitempty"`
	DueDate       *time.Time        `json:"dueDate,omitempty"`
	Allocations   []AllocationInput `json:"allocations"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	TargetStatus string `json:"targetStatus" binding:"required"`
	Version      int64  `json:"version" binding:"required"`
	// Note is the mandatory justification for a partial approval.
	Note string `json:"note,omitempty"`
	// Reason is the mandatory free-text reason for a denial.
	Reason string `json:"reason,omitempty"`
	// OverridePOOverage forces the transition past a PO_OVERAGE soft block.
	OverridePOOverage bool `json:"overridePOOverage,omitempty"`
}

// CloseOutRequest writes off the billed-vs-amount shortfall on an invoice.
type CloseOutRequest struct {
	Version    int64  `json:"version" binding:"required"`
	ReasonCode string `json:"reasonCode" binding:"required"`
	Notes      string `json:"notes,omitempty"`
}

// AllocationResponse is one allocation line in a response.
type AllocationResponse struct {
	AllocationID  string          `json:"allocationID"`
	CostCodeID    string          `json:"costCodeID"`
	Amount        decimal.Decimal `json:"amount"`
	POID          *string         `json:"poID,omitempty"`
	ChangeOrderID *string         `json:"changeOrderID,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Provenance    string          `json:"provenance,omitempty"`
	NeedsCOLink   bool            `json:"needsCOLink"`
}

// InvoiceResponse is the full invoice representation returned to callers.
type InvoiceResponse struct {
	InvoiceID       string                       `json:"invoiceID"`
	JobID           *string                      `json:"jobID,omitempty"`
	VendorID        *string                      `json:"vendorID,omitempty"`
	InvoiceNumber   string                       `json:"invoiceNumber"`
	Amount          decimal.Decimal              `json:"amount"`
	InvoiceDate     *time.Time                   `json:"invoiceDate,omitempty"`
	DueDate         *time.Time                   `json:"dueDate,omitempty"`
	Status          string                       `json:"status"`
	BilledAmount    decimal.Decimal              `json:"billedAmount"`
	PaidAmount      decimal.Decimal              `json:"paidAmount"`
	Version         int64                        `json:"version"`
	DrawID          *string                      `json:"drawID,omitempty"`
	ParentInvoiceID *string                      `json:"parentInvoiceID,omitempty"`
	IsSplitParent   bool                         `json:"isSplitParent"`
	ClosedOutAt     *time.Time                   `json:"closedOutAt,omitempty"`
	FieldOrigins    map[string]domain.FieldValue `json:"fieldOrigins,omitempty"`
	Allocations     []AllocationResponse         `json:"allocations,omitempty"`
	AllocatedTotal  decimal.Decimal              `json:"allocatedTotal"`
	FullyAllocated  bool                         `json:"fullyAllocated"`
	CreatedAt       time.Time                    `json:"createdAt"`
	CreatedBy       string                       `json:"createdBy"`
}

// ToAllocationResponse converts a domain.Allocation.
func ToAllocationResponse(a domain.Allocation) AllocationResponse {
	return AllocationResponse{
		AllocationID:  a.AllocationID,
		CostCodeID:    a.CostCodeID,
		Amount:        a.Amount,
		POID:          a.POID,
		ChangeOrderID: a.ChangeOrderID,
		Notes:         a.Notes,
		Provenance:    string(a.Provenance),
		NeedsCOLink:   a.NeedsCOLink,
	}
}

// ToInvoiceResponse converts a domain.Invoice and its allocation lines.
func ToInvoiceResponse(inv *domain.Invoice, allocs []domain.Allocation, fullyAllocated bool) InvoiceResponse {
	resp := InvoiceResponse{
		InvoiceID:       inv.InvoiceID,
		JobID:           inv.JobID,
		VendorID:        inv.VendorID,
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          inv.Amount,
		InvoiceDate:     inv.InvoiceDate,
		DueDate:         inv.DueDate,
		Status:          string(inv.Status),
		BilledAmount:    inv.BilledAmount,
		PaidAmount:      inv.PaidAmount,
		Version:         inv.Version,
		DrawID:          inv.DrawID,
		ParentInvoiceID: inv.ParentInvoiceID,
		IsSplitParent:   inv.IsSplitParent,
		ClosedOutAt:     inv.ClosedOutAt,
		FieldOrigins:    inv.FieldOrigins,
		AllocatedTotal:  domain.SumAllocations(allocs),
		FullyAllocated:  fullyAllocated,
		CreatedAt:       inv.CreatedAt,
		CreatedBy:       inv.CreatedBy,
	}
	for _, a := range allocs {
		resp.Allocations = append(resp.Allocations, ToAllocationResponse(a))
	}
	return resp
}
