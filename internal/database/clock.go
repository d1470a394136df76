package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// StoreClock reads the current time from the database so that every instance
// evaluates throttle windows and timeouts against the same clock.
type StoreClock struct {
	db *gorm.DB
}

// NewStoreClock returns a clock backed by db.
func NewStoreClock(db *gorm.DB) *StoreClock {
	return &StoreClock{db: db}
}

// Now returns the database's current time in UTC. Dialects without a
// server clock (sqlite) fall back to the process clock.
func (c *StoreClock) Now(ctx context.Context) (time.Time, error) {
	if c.db.Dialector.Name() != "postgres" {
		return time.Now().UTC(), nil
	}

	var now time.Time
	if err := c.db.WithContext(ctx).Raw("SELECT NOW()").Scan(&now).Error; err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}
