package domain

import "time"

// EntityType names a lockable entity collection.
type EntityType string

const (
	EntityInvoice EntityType = "invoice"
	EntityDraw    EntityType = "draw"
)

// EntityLock is an advisory edit lock on one entity. It does not block reads;
// it guards against two simultaneous edit sessions. A lock past ExpiresAt is
// treated as free, since the optimistic version check remains the final guard
// against lost updates.
type EntityLock struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityID"`
	HolderID   string     `json:"holderID"`
	HolderName string     `json:"holderName,omitempty"`
	AcquiredAt time.Time  `json:"acquiredAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// ExpiredAt reports whether the lock has lapsed as of now.
func (l EntityLock) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
