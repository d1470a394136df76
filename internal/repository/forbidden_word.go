package repository

import (
	"context"

	"modhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForbiddenWordRepository manages the blocklist.
type ForbiddenWordRepository interface {
	List(ctx context.Context) ([]*models.ForbiddenWord, error)
	Upsert(ctx context.Context, words ...*models.ForbiddenWord) error
	Delete(ctx context.Context, word string) (bool, error)
}

type forbiddenWordRepository struct {
	db *gorm.DB
}

// NewForbiddenWordRepository creates a new ForbiddenWordRepository
func NewForbiddenWordRepository(db *gorm.DB) ForbiddenWordRepository {
	return &forbiddenWordRepository{db: db}
}

func (r *forbiddenWordRepository) List(ctx context.Context) ([]*models.ForbiddenWord, error) {
	var words []*models.ForbiddenWord
	err := r.db.WithContext(ctx).Order("word asc").Find(&words).Error
	return words, err
}

// Upsert inserts words, replacing the severity of any that already exist.
func (r *forbiddenWordRepository) Upsert(ctx context.Context, words ...*models.ForbiddenWord) error {
	if len(words) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "word"}},
		DoUpdates: clause.AssignmentColumns([]string{"severity", "updated_at"}),
	}).Create(words).Error
}

func (r *forbiddenWordRepository) Delete(ctx context.Context, word string) (bool, error) {
	res := r.db.WithContext(ctx).Where("word = ?", word).Delete(&models.ForbiddenWord{})
	return res.RowsAffected > 0, res.Error
}
