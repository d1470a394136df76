package seed

import (
	"context"
	"testing"

	"modhub/internal/models"
	"modhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	sum, err := NewSeeder(db, 42).Run(ctx, Options{NumUsers: 6, NumMods: 2, CommentsPerMod: 10, PendingEvery: 5})
	require.NoError(t, err)

	assert.Equal(t, 8, sum.Users)
	assert.Equal(t, 2, sum.Mods)
	assert.Equal(t, 20, sum.Comments)
	assert.Equal(t, 4, sum.Pending)

	var mods []models.Mod
	require.NoError(t, db.Find(&mods).Error)
	for _, mod := range mods {
		var approved int64
		require.NoError(t, db.Model(&models.Comment{}).
			Where("mod_id = ? AND is_approved = ?", mod.ID, true).
			Count(&approved).Error)
		assert.EqualValues(t, approved, mod.CommentCount, "comment_count tracks approved comments")
	}

	var comments []models.Comment
	require.NoError(t, db.Find(&comments).Error)
	for _, c := range comments {
		var up, down int64
		require.NoError(t, db.Model(&models.CommentVote{}).Where("comment_id = ? AND vote_type = ?", c.ID, models.VoteUpvote).Count(&up).Error)
		require.NoError(t, db.Model(&models.CommentVote{}).Where("comment_id = ? AND vote_type = ?", c.ID, models.VoteDownvote).Count(&down).Error)
		assert.EqualValues(t, up, c.LikeCount)
		assert.EqualValues(t, down, c.DislikeCount)
		if c.ParentID != nil {
			assert.Nil(t, c.Rating, "replies never carry a rating")
		}
	}

	var words int64
	require.NoError(t, db.Model(&models.ForbiddenWord{}).Count(&words).Error)
	assert.EqualValues(t, len(DefaultBlocklist), words)
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := NewSeeder(db, 7)

	_, err := s.Run(ctx, Options{NumUsers: 3, NumMods: 1, CommentsPerMod: 4})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	for _, m := range []any{&models.User{}, &models.Comment{}, &models.CommentVote{}, &models.Mod{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
}
