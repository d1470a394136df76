// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"modhub/internal/database"
	"modhub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
// Foreign keys are enforced as they are on postgres. A single connection
// keeps every query on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts a clock at a fixed UTC instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

// Now implements the service clock interface.
func (c *FakeClock) Now(context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fixture seeds the rows most engine tests need.
type Fixture struct {
	Author    *models.User
	Other     *models.User
	Moderator *models.User
	Admin     *models.User
	Banned    *models.User
	Mod       *models.Mod
}

// Seed creates a mod plus one user of each kind.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{
		Author:    &models.User{Username: "author", Role: models.RoleUser},
		Other:     &models.User{Username: "other", Role: models.RoleUser},
		Moderator: &models.User{Username: "mod", Role: models.RoleModerator},
		Admin:     &models.User{Username: "admin", Role: models.RoleAdmin},
		Banned:    &models.User{Username: "banned", Role: models.RoleUser, IsBanned: true},
	}
	for _, u := range []*models.User{f.Author, f.Other, f.Moderator, f.Admin, f.Banned} {
		require.NoError(t, db.Create(u).Error)
	}

	f.Mod = &models.Mod{Name: "Better Trees", UserID: f.Author.ID}
	require.NoError(t, db.Create(f.Mod).Error)
	return f
}

// CommentCount reloads the mod's comment_count.
func CommentCount(t *testing.T, db *gorm.DB, modID uint) int {
	t.Helper()
	var mod models.Mod
	require.NoError(t, db.First(&mod, modID).Error)
	return mod.CommentCount
}
