package domain

import "github.com/shopspring/decimal"

// AllocationProvenance tags how an allocation line was produced.
type AllocationProvenance string

const (
	ProvenanceManual      AllocationProvenance = "MANUAL"
	ProvenanceAISuggested AllocationProvenance = "AI_SUGGESTED"
)

// Allocation codes part of an invoice's amount to a cost code, optionally
// linked to a purchase order (vendor commitment) and/or a change order
// (scope/budget). The two links are independent, not mutually exclusive.
// Allocations for one invoice may sum to less than the invoice amount
// (partial coding) but never more.
type Allocation struct {
	AllocationID  string               `json:"allocationID"`
	InvoiceID     string               `json:"invoiceID"`
	CostCodeID    string               `json:"costCodeID"`
	Amount        decimal.Decimal      `json:"amount"`
	POID          *string              `json:"poID,omitempty"`
	ChangeOrderID *string              `json:"changeOrderID,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Provenance    AllocationProvenance `json:"provenance,omitempty"`
	// NeedsCOLink is set by the funding resolver when the cost code is
	// change-order-only and no change order is linked yet. Approval is
	// blocked until resolved.
	NeedsCOLink bool `json:"needsCOLink"`
	AuditFields
}

// SumAllocations totals the amounts of the given lines.
func SumAllocations(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}
