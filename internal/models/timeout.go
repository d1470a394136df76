package models

import "time"

// UserTimeout is one append-only submission ban. The active timeout for a user
// is the most recent row whose TimeoutUntil is still in the future.
type UserTimeout struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_timeouts_user_until,priority:1" json:"user_id"`
	Reason       string    `gorm:"not null" json:"reason"`
	Severity     Severity  `gorm:"type:varchar(16);not null" json:"severity"`
	TimeoutUntil time.Time `gorm:"not null;index:idx_timeouts_user_until,priority:2" json:"timeout_until"`
	CreatedBy    *uint     `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActiveTimeout is the caller-facing view of a timeout still in force.
type ActiveTimeout struct {
	Reason           string    `json:"reason"`
	Severity         Severity  `json:"severity"`
	TimeoutUntil     time.Time `json:"timeout_until"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}
