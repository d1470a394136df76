package models

import "time"

// ForbiddenWord is an admin-managed blocklist entry matched against whole tokens.
type ForbiddenWord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Word      string    `gorm:"uniqueIndex;not null" json:"word"`
	Severity  Severity  `gorm:"type:varchar(16);not null" json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
