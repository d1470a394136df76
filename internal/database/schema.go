package database

import (
	"fmt"

	"modhub/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Mod{},
		&models.Comment{},
		&models.CommentVote{},
		&models.UserTimeout{},
		&models.ForbiddenWord{},
		&models.Setting{},
		&models.ActivityLog{},
	}
}

// Migrate brings the schema up to date with PersistentModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
