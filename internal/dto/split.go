package dto

import "github.com/shopspring/decimal"

// SplitTarget describes one child invoice to carve out of a split parent.
type SplitTarget struct {
	JobID  string          `json:"jobID" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes,omitempty"`
}

// SplitInvoiceRequest divides one invoice into child invoices against
// distinct jobs/amounts. Target amounts must sum to the parent's amount.
type SplitInvoiceRequest struct {
	Version int64         `json:"version" binding:"required"`
	Targets []SplitTarget `json:"targets" binding:"required,min=2,dive"`
}

// SplitInvoiceResponse returns the split parent and its new children.
type SplitInvoiceResponse struct {
	Parent   InvoiceResponse   `json:"parent"`
	Children []InvoiceResponse `json:"children"`
}
