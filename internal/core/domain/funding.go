package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// COOnlySuffix is the reserved marker on a cost code's code value that
// classifies it as change-order-only. Allocations against such a code must
// carry a change-order link before the invoice can be approved.
const COOnlySuffix = "*"

// CostCode is a budget category code, e.g. "03-300 Concrete".
type CostCode struct {
	CostCodeID  string `json:"costCodeID"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
	AuditFields
}

// IsChangeOrderOnly reports whether the code carries the reserved
// change-order-only suffix marker.
func (c CostCode) IsChangeOrderOnly() bool {
	return strings.HasSuffix(strings.TrimSpace(c.Code), COOnlySuffix)
}

// POLineItem is a scope line on a purchase order. A line that references a
// change order records "this PO was issued against this CO for this scope
// item" and drives the resolver's CO auto-suggestion.
type POLineItem struct {
	LineItemID    string          `json:"lineItemID"`
	POID          string          `json:"poID"`
	CostCodeID    *string         `json:"costCodeID,omitempty"`
	ChangeOrderID *string         `json:"changeOrderID,omitempty"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// PurchaseOrder is a vendor commitment on a job. PreviouslyBilled is the sum
// of allocations already coded against it; Remaining is computed by the
// funding resolver per request, excluding the invoice currently being edited.
type PurchaseOrder struct {
	POID             string          `json:"poID"`
	JobID            string          `json:"jobID"`
	VendorID         string          `json:"vendorID"`
	PONumber         string          `json:"poNumber"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	PreviouslyBilled decimal.Decimal `json:"previouslyBilled"`
	LineItems        []POLineItem    `json:"lineItems,omitempty"`
	AuditFields
}

// Remaining is the funding still available on the PO.
func (po PurchaseOrder) Remaining() decimal.Decimal {
	return po.TotalAmount.Sub(po.PreviouslyBilled)
}

// ChangeOrderStatus is the approval state of a change order.
type ChangeOrderStatus string

const (
	COStatusDraft           ChangeOrderStatus = "DRAFT"
	COStatusPendingApproval ChangeOrderStatus = "PENDING_APPROVAL"
	COStatusApproved        ChangeOrderStatus = "APPROVED"
	COStatusRejected        ChangeOrderStatus = "REJECTED"
)

// ChangeOrder is a scope/budget amendment on a job, a funding source for
// allocations alongside purchase orders.
type ChangeOrder struct {
	ChangeOrderID     string            `json:"changeOrderID"`
	JobID             string            `json:"jobID"`
	ChangeOrderNumber string            `json:"changeOrderNumber"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            ChangeOrderStatus `json:"status"`
	PreviouslyBilled  decimal.Decimal   `json:"previouslyBilled"`
	AuditFields
}

// Remaining is the funding still available on the CO.
func (co ChangeOrder) Remaining() decimal.Decimal {
	return co.Amount.Sub(co.PreviouslyBilled)
}
