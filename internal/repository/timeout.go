package repository

import (
	"context"
	"errors"
	"time"

	"modhub/internal/models"

	"gorm.io/gorm"
)

// TimeoutRepository stores append-only submission timeouts.
type TimeoutRepository interface {
	Create(ctx context.Context, timeout *models.UserTimeout) error
	// Active returns the most recent timeout still in force at now, or nil.
	Active(ctx context.Context, userID uint, now time.Time) (*models.UserTimeout, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]*models.UserTimeout, error)
}

type timeoutRepository struct {
	db *gorm.DB
}

// NewTimeoutRepository creates a new TimeoutRepository
func NewTimeoutRepository(db *gorm.DB) TimeoutRepository {
	return &timeoutRepository{db: db}
}

func (r *timeoutRepository) Create(ctx context.Context, timeout *models.UserTimeout) error {
	return r.db.WithContext(ctx).Create(timeout).Error
}

func (r *timeoutRepository) Active(ctx context.Context, userID uint, now time.Time) (*models.UserTimeout, error) {
	var timeout models.UserTimeout
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND timeout_until > ?", userID, now).
		Order("created_at desc, id desc").
		Take(&timeout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &timeout, nil
}

func (r *timeoutRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.UserTimeout, error) {
	var timeouts []*models.UserTimeout
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&timeouts).Error
	return timeouts, err
}
