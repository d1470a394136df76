package repository

import (
	"context"

	"modhub/internal/models"

	"gorm.io/gorm"
)

// ModRepository reads the content entities comments attach to.
type ModRepository interface {
	Create(ctx context.Context, mod *models.Mod) error
	GetByID(ctx context.Context, id uint) (*models.Mod, error)
	List(ctx context.Context, limit, offset int) ([]*models.Mod, error)
}

type modRepository struct {
	db *gorm.DB
}

// NewModRepository creates a new ModRepository
func NewModRepository(db *gorm.DB) ModRepository {
	return &modRepository{db: db}
}

func (r *modRepository) Create(ctx context.Context, mod *models.Mod) error {
	return r.db.WithContext(ctx).Create(mod).Error
}

func (r *modRepository) GetByID(ctx context.Context, id uint) (*models.Mod, error) {
	var mod models.Mod
	if err := r.db.WithContext(ctx).First(&mod, id).Error; err != nil {
		return nil, err
	}
	return &mod, nil
}

func (r *modRepository) List(ctx context.Context, limit, offset int) ([]*models.Mod, error) {
	var mods []*models.Mod
	err := r.db.WithContext(ctx).Order("id asc").Limit(limit).Offset(offset).Find(&mods).Error
	return mods, err
}
