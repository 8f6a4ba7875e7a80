package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType classifies a structured UI event.
type NotificationType string

const (
	NotifySuccess  NotificationType = "success"
	NotifyError    NotificationType = "error"
	NotifyConflict NotificationType = "conflict"
)

// Notification is the structured event emitted on every state transition,
// lock failure or validation failure, for the UI layer to render.
type Notification struct {
	Type    NotificationType       `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// UndoToken accompanies a successful save and allows a bounded-time reversal.
type UndoToken struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

// RebalanceInfo reports the sibling allocation line auto-reduced during a
// save to keep the total at or under the cap.
type RebalanceInfo struct {
	AdjustedIndex  int             `json:"adjustedIndex"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
}

// SaveInvoiceResponse is returned from a committed edit session.
type SaveInvoiceResponse struct {
	Invoice      InvoiceResponse `json:"invoice"`
	Notification Notification    `json:"notification"`
	Undo         *UndoToken      `json:"undo,omitempty"`
	AdjustedLine *RebalanceInfo  `json:"adjustedLine,omitempty"`
}

// TransitionResponse is returned from a status transition.
type TransitionResponse struct {
	Invoice      InvoiceResponse `json:"invoice"`
	Notification Notification    `json:"notification"`
}
