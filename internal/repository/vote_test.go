package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"modhub/internal/models"
	"modhub/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteRepository_ApplyLocksCommentAndHonoursGuard(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	veto := errors.New("not allowed")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "comments" WHERE "comments"."id" = $1`) + `.*` + regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_approved"}).AddRow(5, false))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), 5, 1, models.VoteUpvote, func(c *models.Comment) error {
		assert.Equal(t, uint(5), c.ID)
		return veto
	})
	assert.ErrorIs(t, err, veto)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_ApplySequence(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx := testutil.Seed(t, db)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	comment := &models.Comment{ModID: fx.Mod.ID, UserID: fx.Author.ID, Content: "c", IsApproved: true}
	require.NoError(t, db.Create(comment).Error)

	out, err := repo.Apply(ctx, comment.ID, fx.Other.ID, models.VoteUpvote, nil)
	require.NoError(t, err)
	assert.Equal(t, models.VoteAdded, out.Plan.Action)
	assert.Equal(t, models.VoteNone, out.Previous)
	assert.Equal(t, 1, out.LikeCount)

	out, err = repo.Apply(ctx, comment.ID, fx.Other.ID, models.VoteDownvote, nil)
	require.NoError(t, err)
	assert.Equal(t, models.VoteChanged, out.Plan.Action)
	assert.Equal(t, models.VoteUpvote, out.Previous)
	assert.Equal(t, 0, out.LikeCount)
	assert.Equal(t, 1, out.DislikeCount)

	current, err := repo.Get(ctx, comment.ID, fx.Other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VoteDownvote, current)

	byUser, err := repo.VotesByUser(ctx, fx.Other.ID, []uint{comment.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, map[uint]models.VoteType{comment.ID: models.VoteDownvote}, byUser)

	// counters drifted to zero must not go negative on removal
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", comment.ID).Update("dislike_count", 0).Error)
	out, err = repo.Apply(ctx, comment.ID, fx.Other.ID, models.VoteDownvote, nil)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, out.Plan.Action)
	assert.Equal(t, 0, out.DislikeCount)

	current, err = repo.Get(ctx, comment.ID, fx.Other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VoteNone, current)
}

func TestVoteRepository_UniquePair(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, db.Create(&models.CommentVote{CommentID: 1, UserID: 2, VoteType: models.VoteUpvote}).Error)

	err := db.Create(&models.CommentVote{CommentID: 1, UserID: 2, VoteType: models.VoteDownvote}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestVoteRepository_MissingComment(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := NewVoteRepository(db).Apply(context.Background(), 404, 1, models.VoteUpvote, nil)
	assert.Error(t, err)
}
