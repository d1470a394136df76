package models

import "time"

// ActivityLog is a persisted audit event.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	ActorID    *uint     `gorm:"index" json:"actor_id,omitempty"`
	ActorRole  string    `json:"actor_role,omitempty"`
	Action     string    `gorm:"not null;index" json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   uint      `json:"target_id"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Metadata   string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
