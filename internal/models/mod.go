package models

import "time"

// Mod is the catalog entry comments attach to. CommentCount tracks approved
// comments only.
type Mod struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
