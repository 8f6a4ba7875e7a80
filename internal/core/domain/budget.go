package domain

import "github.com/shopspring/decimal"

// BudgetLine is the (job, cost code) budget row. BilledAmount and PaidAmount
// are derived caches owned by the reconciliation engine and are never
// hand-edited.
type BudgetLine struct {
	BudgetLineID    string          `json:"budgetLineID"`
	JobID           string          `json:"jobID"`
	CostCodeID      string          `json:"costCodeID"`
	BudgetedAmount  decimal.Decimal `json:"budgetedAmount"`
	CommittedAmount decimal.Decimal `json:"committedAmount"`
	BilledAmount    decimal.Decimal `json:"billedAmount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	AuditFields
}

// Job is a construction project. Invoices, budgets, draws and funding
// sources all hang off a job.
type Job struct {
	JobID    string `json:"jobID"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"isActive"`
	AuditFields
}
