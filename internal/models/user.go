// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Role names recognised by the capability checks.
const (
	RoleUser       = "user"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
)

// IsPrivilegedRole reports whether role grants moderation, vote and delete bypass.
func IsPrivilegedRole(role string) bool {
	switch role {
	case RoleModerator, RoleAdmin, RoleSupervisor:
		return true
	}
	return false
}

// IsAdminRole reports whether role may manage the blocklist and settings.
func IsAdminRole(role string) bool {
	return role == RoleAdmin || role == RoleSupervisor
}

// User is the identity record the engine consults for roles and bans.
// Authentication and profile data live outside this service.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"unique;not null" json:"username"`
	Role      string    `gorm:"not null;default:user" json:"role"`
	IsBanned  bool      `gorm:"not null;default:false;index" json:"is_banned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
