package models

import "time"

// SettingModerationEnabled gates whether new root comments start PENDING.
const SettingModerationEnabled = "moderation_enabled"

// Setting is a key/value row in the settings store.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
