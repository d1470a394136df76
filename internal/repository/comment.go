package repository

import (
	"context"
	"time"

	"modhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentListQuery selects the comments a viewer may see on one mod.
type CommentListQuery struct {
	ModID uint
	// ViewerID additionally reveals the viewer's own pending comments. Zero means anonymous.
	ViewerID uint
	// IncludeHidden shows pending and rejected comments from everyone.
	IncludeHidden bool
	// RootsOnly skips replies.
	RootsOnly bool
}

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	OldestByUserSince(ctx context.Context, userID uint, since time.Time) (*time.Time, error)
	List(ctx context.Context, q CommentListQuery) ([]*models.Comment, error)
	ListPending(ctx context.Context, modID *uint, limit, offset int) ([]*models.Comment, error)
	Approve(ctx context.Context, id uint, now time.Time) (*models.Comment, error)
	Reject(ctx context.Context, id, moderatorID uint, reason string, now time.Time) (*models.Comment, error)
	Delete(ctx context.Context, id uint) (*models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment. An approved comment bumps its mod's
// comment_count in the same transaction.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if !comment.IsApproved {
			return nil
		}
		return incrementCommentCount(tx, comment.ModID)
	})
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

// OldestByUserSince returns the creation time of the user's oldest comment in
// the window, or nil when there is none.
func (r *commentRepository) OldestByUserSince(ctx context.Context, userID uint, since time.Time) (*time.Time, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Select("id", "created_at").
		Where("user_id = ? AND created_at > ?", userID, since).
		Order("created_at asc").
		Limit(1).
		Find(&comments).Error
	if err != nil || len(comments) == 0 {
		return nil, err
	}
	return &comments[0].CreatedAt, nil
}

// List returns comments in creation order. Comments written by banned users
// are never returned; a missing user row counts as not banned.
func (r *commentRepository) List(ctx context.Context, q CommentListQuery) ([]*models.Comment, error) {
	query := r.db.WithContext(ctx).
		Select("comments.*").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Where("comments.mod_id = ?", q.ModID).
		Where("(users.is_banned IS NULL OR users.is_banned = ?)", false)

	if !q.IncludeHidden {
		if q.ViewerID != 0 {
			query = query.Where(
				"(comments.is_approved = ? OR (comments.user_id = ? AND comments.rejected_at IS NULL))",
				true, q.ViewerID,
			)
		} else {
			query = query.Where("comments.is_approved = ?", true)
		}
	}
	if q.RootsOnly {
		query = query.Where("comments.parent_id IS NULL")
	}

	var comments []*models.Comment
	err := query.
		Preload("User").
		Order("comments.created_at asc, comments.id asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListPending(ctx context.Context, modID *uint, limit, offset int) ([]*models.Comment, error) {
	query := r.db.WithContext(ctx).
		Where("is_approved = ? AND rejected_at IS NULL", false)
	if modID != nil {
		query = query.Where("mod_id = ?", *modID)
	}

	var comments []*models.Comment
	err := query.
		Preload("User").
		Order("created_at asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

// Approve moves a pending comment to approved and bumps the mod counter. The
// state check and the write are one conditional UPDATE so concurrent
// approvals count once.
func (r *commentRepository) Approve(ctx context.Context, id uint, now time.Time) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_approved = ? AND rejected_at IS NULL", id, false).
			Updates(map[string]any{
				"is_approved":      true,
				"rejection_reason": nil,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&comment, id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrStateConflict
		}
		return incrementCommentCount(tx, comment.ModID)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Reject moves a pending comment to rejected. No counters change.
func (r *commentRepository) Reject(ctx context.Context, id, moderatorID uint, reason string, now time.Time) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_approved = ? AND rejected_at IS NULL", id, false).
			Updates(map[string]any{
				"rejection_reason": reason,
				"rejected_at":      now,
				"rejected_by":      moderatorID,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&comment, id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrStateConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Delete removes the comment and its votes and returns the row as it was.
// The mod counter drops by one, never below zero, when the comment was approved.
func (r *commentRepository) Delete(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comment, id).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", id).Delete(&models.CommentVote{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Comment{}, id).Error; err != nil {
			return err
		}
		if !comment.IsApproved {
			return nil
		}
		return tx.Model(&models.Mod{}).
			Where("id = ?", comment.ModID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count > 0 THEN comment_count - 1 ELSE 0 END")).
			Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func incrementCommentCount(tx *gorm.DB, modID uint) error {
	return tx.Model(&models.Mod{}).
		Where("id = ?", modID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).
		Error
}
