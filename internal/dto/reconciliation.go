package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discrepancy is one stored-vs-derived mismatch found by reconciliation.
// Stored is the value on the record, Derived the value recomputed from the
// allocation/draw source records.
type Discrepancy struct {
	EntityType string          `json:"entityType"` // invoice | draw | budget_line
	EntityID   string          `json:"entityID"`
	Field      string          `json:"field"`
	Stored     decimal.Decimal `json:"stored"`
	Derived    decimal.Decimal `json:"derived"`
	Corrected  bool            `json:"corrected"`
}

// ReconciliationReport is the outcome of one per-job reconciliation run.
type ReconciliationReport struct {
	JobID              string        `json:"jobID"`
	RanAt              time.Time     `json:"ranAt"`
	WriteMode          bool          `json:"writeMode"`
	Discrepancies      []Discrepancy `json:"discrepancies"`
	CorrectionsApplied int           `json:"correctionsApplied"`
	BudgetLinesCreated int           `json:"budgetLinesCreated"`
}

// ReconcileRequest triggers an on-demand reconciliation run.
type ReconcileRequest struct {
	// Write applies corrections; otherwise the run only reports drift.
	Write bool `json:"write"`
}
