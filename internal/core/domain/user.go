package domain

import "time"

// User is an office staff member. Users hold entity locks, perform
// transitions and appear as performers on activity events.
type User struct {
	UserID       string `json:"userID"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	AuditFields
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}
