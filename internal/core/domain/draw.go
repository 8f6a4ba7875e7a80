package domain

import "github.com/shopspring/decimal"

// DrawStatus is the state of a payment draw.
type DrawStatus string

const (
	DrawDraft DrawStatus = "DRAFT"
	DrawFinal DrawStatus = "FINAL"
)

// Draw is a batch of approved invoices submitted together for funding on a
// job. TotalAmount is derived from member invoice amounts and repaired by the
// reconciliation engine if it drifts.
type Draw struct {
	DrawID      string          `json:"drawID"`
	JobID       string          `json:"jobID"`
	DrawNumber  int             `json:"drawNumber"`
	Status      DrawStatus      `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	AuditFields
}
