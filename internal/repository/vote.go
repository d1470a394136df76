package repository

import (
	"context"
	"errors"

	"modhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome is the ledger state after a vote was applied.
type VoteOutcome struct {
	Plan         models.VotePlan
	Previous     models.VoteType
	Comment      *models.Comment
	LikeCount    int
	DislikeCount int
}

// VoteGuard inspects the locked comment before any ledger change and may veto it.
type VoteGuard func(comment *models.Comment) error

// VoteRepository defines the per-(user, comment) vote ledger.
type VoteRepository interface {
	Apply(ctx context.Context, commentID, userID uint, requested models.VoteType, guard VoteGuard) (*VoteOutcome, error)
	Get(ctx context.Context, commentID, userID uint) (models.VoteType, error)
	VotesByUser(ctx context.Context, userID uint, commentIDs []uint) (map[uint]models.VoteType, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Apply locks the comment row, reads the current vote and executes the plan
// in one transaction. Concurrent identical requests serialize on the lock;
// the unique (user_id, comment_id) index rejects any duplicate that slips past.
func (r *voteRepository) Apply(ctx context.Context, commentID, userID uint, requested models.VoteType, guard VoteGuard) (*VoteOutcome, error) {
	var out VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comment, commentID).Error; err != nil {
			return err
		}
		if guard != nil {
			if err := guard(&comment); err != nil {
				return err
			}
		}

		var existing models.CommentVote
		err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = models.CommentVote{}
		case err != nil:
			return err
		}

		plan := models.PlanVote(existing.VoteType, requested)
		switch plan.Action {
		case models.VoteAdded:
			vote := &models.CommentVote{CommentID: commentID, UserID: userID, VoteType: plan.Next}
			if err := tx.Create(vote).Error; err != nil {
				return err
			}
		case models.VoteRemoved:
			if err := tx.Delete(&models.CommentVote{}, existing.ID).Error; err != nil {
				return err
			}
		case models.VoteChanged:
			if err := tx.Model(&models.CommentVote{}).Where("id = ?", existing.ID).
				Update("vote_type", plan.Next).Error; err != nil {
				return err
			}
		}

		if err := applyCounterDeltas(tx, commentID, plan); err != nil {
			return err
		}
		if err := tx.Select("id", "like_count", "dislike_count").First(&comment, commentID).Error; err != nil {
			return err
		}

		out = VoteOutcome{
			Plan:         plan,
			Previous:     existing.VoteType,
			Comment:      &comment,
			LikeCount:    comment.LikeCount,
			DislikeCount: comment.DislikeCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// applyCounterDeltas adjusts the denormalized counters relative to their
// current value, flooring each at zero.
func applyCounterDeltas(tx *gorm.DB, commentID uint, plan models.VotePlan) error {
	updates := map[string]any{}
	if plan.LikeDelta != 0 {
		updates["like_count"] = gorm.Expr("CASE WHEN like_count + ? < 0 THEN 0 ELSE like_count + ? END", plan.LikeDelta, plan.LikeDelta)
	}
	if plan.DislikeDelta != 0 {
		updates["dislike_count"] = gorm.Expr("CASE WHEN dislike_count + ? < 0 THEN 0 ELSE dislike_count + ? END", plan.DislikeDelta, plan.DislikeDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Comment{}).Where("id = ?", commentID).UpdateColumns(updates).Error
}

func (r *voteRepository) Get(ctx context.Context, commentID, userID uint) (models.VoteType, error) {
	var vote models.CommentVote
	err := r.db.WithContext(ctx).Where("comment_id = ? AND user_id = ?", commentID, userID).Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.VoteNone, nil
	}
	if err != nil {
		return models.VoteNone, err
	}
	return vote.VoteType, nil
}

// VotesByUser returns the user's vote per comment id for the given ids.
func (r *voteRepository) VotesByUser(ctx context.Context, userID uint, commentIDs []uint) (map[uint]models.VoteType, error) {
	result := make(map[uint]models.VoteType, len(commentIDs))
	if userID == 0 || len(commentIDs) == 0 {
		return result, nil
	}

	var votes []models.CommentVote
	err := r.db.WithContext(ctx).
		Select("comment_id", "vote_type").
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		result[v.CommentID] = v.VoteType
	}
	return result, nil
}
