package seed

import (
	"context"
	"fmt"

	"modhub/internal/database"
	"modhub/internal/models"
	"modhub/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumMods        int
	CommentsPerMod int
	// PendingEvery leaves every Nth root comment in the moderation queue.
	PendingEvery int
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Mods     int
	Comments int
	Replies  int
	Pending  int
	Votes    int
}

// DefaultBlocklist is a small starter blocklist for local development.
var DefaultBlocklist = []*models.ForbiddenWord{
	{Word: "darn", Severity: models.SeverityLow},
	{Word: "scam", Severity: models.SeverityMedium},
	{Word: "doxx", Severity: models.SeverityHigh},
}

// Seeder populates a database with demo users, mods, threads and votes.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder whose fake data is derived from seed.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, seed)}
}

// ClearAll removes every row from the engine's tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := database.PersistentModels()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	return nil
}

// Run creates one moderator and one admin plus opts.NumUsers regular users,
// then comments, replies and votes on opts.NumMods mods.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumUsers < 1 {
		opts.NumUsers = 1
	}
	if opts.PendingEvery <= 0 {
		opts.PendingEvery = 5
	}
	f := s.factory
	sum := &Summary{}

	if err := repository.NewForbiddenWordRepository(s.db).Upsert(ctx, DefaultBlocklist...); err != nil {
		return nil, fmt.Errorf("seed blocklist: %w", err)
	}

	staff := []string{models.RoleModerator, models.RoleAdmin}
	users := make([]*models.User, 0, opts.NumUsers)
	for _, role := range staff {
		if _, err := f.CreateUser(ctx, role); err != nil {
			return nil, fmt.Errorf("create %s: %w", role, err)
		}
		sum.Users++
	}
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx, models.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
		sum.Users++
	}

	for m := 0; m < opts.NumMods; m++ {
		mod, err := f.CreateMod(ctx, users[f.Pick(len(users))])
		if err != nil {
			return nil, fmt.Errorf("create mod: %w", err)
		}
		sum.Mods++

		var approved []*models.Comment
		for c := 0; c < opts.CommentsPerMod; c++ {
			author := users[f.Pick(len(users))]
			isApproved := (c+1)%opts.PendingEvery != 0
			comment, err := f.CreateComment(ctx, author, mod, nil, isApproved)
			if err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
			if !isApproved {
				sum.Pending++
				continue
			}
			approved = append(approved, comment)

			if f.Pick(3) == 0 {
				replier := users[f.Pick(len(users))]
				if _, err := f.CreateComment(ctx, replier, mod, comment, true); err != nil {
					return nil, fmt.Errorf("create reply: %w", err)
				}
				sum.Replies++
			}
		}

		for _, comment := range approved {
			for _, voter := range users {
				if voter.ID == comment.UserID || f.Pick(2) == 0 {
					continue
				}
				if err := f.Vote(ctx, voter, comment, f.RandomVote()); err != nil {
					return nil, fmt.Errorf("vote: %w", err)
				}
				sum.Votes++
			}
		}
	}

	return sum, nil
}
