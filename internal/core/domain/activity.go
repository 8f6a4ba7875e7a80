package domain

import "time"

// ActivityAction is the verb recorded on an activity event.
type ActivityAction string

const (
	ActionCreated       ActivityAction = "created"
	ActionUpdated       ActivityAction = "updated"
	ActionStatusChanged ActivityAction = "status_changed"
	ActionUnlocked      ActivityAction = "unlocked"
	ActionDenied        ActivityAction = "denied"
	ActionClosedOut     ActivityAction = "closed_out"
	ActionSplit         ActivityAction = "split"
	ActionUnsplit       ActivityAction = "unsplit"
	ActionOverrodePO    ActivityAction = "po_overage_override"
	ActionAddedToDraw   ActivityAction = "added_to_draw"
	ActionHintsApplied  ActivityAction = "ai_hints_applied"
	ActionUndoneSave    ActivityAction = "save_undone"
	ActionReconRepaired ActivityAction = "reconciliation_repair"
)

// ActivityEvent is one append-only log entry on an invoice. Informational
// only; totals are never derived from the activity log.
type ActivityEvent struct {
	EventID     string         `json:"eventID"`
	InvoiceID   string         `json:"invoiceID"`
	Action      ActivityAction `json:"action"`
	PerformedBy string         `json:"performedBy"`
	Detail      string         `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
