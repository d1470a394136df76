package service

import (
	"context"
	"fmt"

	"modhub/internal/models"
	"modhub/internal/observability"
	"modhub/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteResult is returned to the voter after a ledger change.
type VoteResult struct {
	Action models.VoteAction `json:"action"`
	// VoteType echoes the requested type.
	VoteType models.VoteType `json:"vote_type"`
	// CurrentVote is the voter's state after the call; empty once removed.
	CurrentVote models.VoteType `json:"current_vote"`
	// PreviousVote is only set when the vote changed direction.
	PreviousVote models.VoteType `json:"previous_vote,omitempty"`
	LikeCount    int             `json:"like_count"`
	DislikeCount int             `json:"dislike_count"`
}

// VoteService maintains the per-user, per-comment vote ledger.
type VoteService struct {
	votes   repository.VoteRepository
	users   repository.UserRepository
	auditor Auditor
}

func NewVoteService(votes repository.VoteRepository, users repository.UserRepository, auditor Auditor) *VoteService {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &VoteService{votes: votes, users: users, auditor: auditor}
}

// Vote toggles the actor's vote on a comment. A first vote is added, the same
// type again removes it, and the opposite type switches it. Counters move by
// relative deltas and never drop below zero.
func (s *VoteService) Vote(ctx context.Context, actor Actor, commentID uint, rawType string) (result *VoteResult, err error) {
	ctx, span := observability.StartSpan(ctx, "VoteService.Vote",
		attribute.Int64("comment.id", int64(commentID)),
		attribute.Int64("user.id", int64(actor.UserID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	requested, err := models.ParseVoteType(rawType)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := checkBanned(ctx, s.users, actor.UserID); err != nil {
		return nil, err
	}

	guard := func(c *models.Comment) error {
		if !canSee(actor, c) {
			return models.NewNotFoundError("Comment", commentID)
		}
		if !c.IsApproved && !actor.IsPrivileged() {
			return models.NewForbiddenError("Only approved comments can be voted on")
		}
		return nil
	}

	outcome, err := s.votes.Apply(ctx, commentID, actor.UserID, requested, guard)
	if err != nil && repository.IsUniqueViolation(err) {
		// A concurrent first vote won the insert; replay against its row.
		outcome, err = s.votes.Apply(ctx, commentID, actor.UserID, requested, guard)
	}
	if err != nil {
		return nil, translateStoreError(err, "Comment", commentID, "apply vote")
	}

	result = &VoteResult{
		Action:       outcome.Plan.Action,
		VoteType:     requested,
		CurrentVote:  outcome.Plan.Next,
		LikeCount:    outcome.LikeCount,
		DislikeCount: outcome.DislikeCount,
	}
	if outcome.Plan.Action == models.VoteChanged {
		result.PreviousVote = outcome.Previous
	}

	observability.Votes.WithLabelValues(string(result.Action)).Inc()
	s.auditor.Record(ctx, NewAuditEvent(AuditCommentVote, actor, "comment", commentID, map[string]any{
		"action":    string(result.Action),
		"vote_type": string(requested),
	}))
	return result, nil
}

// CurrentVote returns the actor's vote on a comment, or VoteNone.
func (s *VoteService) CurrentVote(ctx context.Context, userID, commentID uint) (models.VoteType, error) {
	vote, err := s.votes.Get(ctx, commentID, userID)
	if err != nil {
		return models.VoteNone, fmt.Errorf("load vote: %w", err)
	}
	return vote, nil
}
