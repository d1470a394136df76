// Package seed provides helpers to create demo data for the comment engine.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"

	"modhub/internal/models"
	"modhub/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them through the repositories,
// so counters stay consistent with what the engine itself would write.
type Factory struct {
	db       *gorm.DB
	faker    *gofakeit.Faker
	users    repository.UserRepository
	mods     repository.ModRepository
	comments repository.CommentRepository
	votes    repository.VoteRepository
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{
		db:       db,
		faker:    gofakeit.New(seed),
		users:    repository.NewUserRepository(db),
		mods:     repository.NewModRepository(db),
		comments: repository.NewCommentRepository(db),
		votes:    repository.NewVoteRepository(db),
	}
}

// CreateUser persists a user with a unique fake username.
func (f *Factory) CreateUser(ctx context.Context, role string, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(1000, 9999)),
		Role:     role,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateMod persists a mod owned by owner.
func (f *Factory) CreateMod(ctx context.Context, owner *models.User) (*models.Mod, error) {
	mod := &models.Mod{
		Name:   fmt.Sprintf("%s %s", f.faker.AppName(), f.faker.RandomString([]string{"Overhaul", "Redux", "Tweaks", "Expanded", "Lite"})),
		UserID: owner.ID,
	}
	if err := f.mods.Create(ctx, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// CreateComment persists a root comment, or a reply when parent is set.
// Replies are always approved and never rated.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, mod *models.Mod, parent *models.Comment, approved bool) (*models.Comment, error) {
	comment := &models.Comment{
		ModID:      mod.ID,
		UserID:     author.ID,
		Content:    f.faker.Sentence(f.faker.Number(4, 16)),
		IsApproved: approved,
	}
	if parent != nil {
		parentID, replyTo := parent.ID, parent.UserID
		comment.ParentID = &parentID
		comment.ReplyToUserID = &replyTo
		comment.IsApproved = true
	} else if f.faker.Number(0, 2) == 0 {
		rating := f.faker.Number(1, 5)
		comment.Rating = &rating
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Vote records voter's vote through the ledger.
func (f *Factory) Vote(ctx context.Context, voter *models.User, comment *models.Comment, voteType models.VoteType) error {
	_, err := f.votes.Apply(ctx, comment.ID, voter.ID, voteType, nil)
	return err
}

// RandomVote picks upvote about three times out of four.
func (f *Factory) RandomVote() models.VoteType {
	if f.faker.Number(0, 3) == 0 {
		return models.VoteDownvote
	}
	return models.VoteUpvote
}

// Pick returns a random index below n.
func (f *Factory) Pick(n int) int {
	return f.faker.Number(0, n-1)
}
