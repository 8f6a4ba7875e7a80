package dto

import (
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
)

// LockResponse describes a held advisory lock.
type LockResponse struct {
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityID"`
	HolderID   string    `json:"holderID"`
	HolderName string    `json:"holderName,omitempty"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ToLockResponse converts a domain.EntityLock.
func ToLockResponse(l *domain.EntityLock) LockResponse {
	return LockResponse{
		EntityType: string(l.EntityType),
		EntityID:   l.EntityID,
		HolderID:   l.HolderID,
		HolderName: l.HolderName,
		AcquiredAt: l.AcquiredAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

// ActivityEventResponse is one entry of an invoice's activity feed.
type ActivityEventResponse struct {
	EventID     string    `json:"eventID"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performedBy"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToActivityEventResponses converts domain events.
func ToActivityEventResponses(events []domain.ActivityEvent) []ActivityEventResponse {
	out := make([]ActivityEventResponse, len(events))
	for i, e := range events {
		out[i] = ActivityEventResponse{
			EventID:     e.EventID,
			Action:      string(e.Action),
			PerformedBy: e.PerformedBy,
			Detail:      e.Detail,
			CreatedAt:   e.CreatedAt,
		}
	}
	return out
}
