package models

import (
	"fmt"
	"time"
)

// VoteType is the direction of a comment vote.
type VoteType string

const (
	VoteNone     VoteType = ""
	VoteUpvote   VoteType = "upvote"
	VoteDownvote VoteType = "downvote"
)

// ParseVoteType validates a client-provided vote type.
func ParseVoteType(raw string) (VoteType, error) {
	switch VoteType(raw) {
	case VoteUpvote, VoteDownvote:
		return VoteType(raw), nil
	}
	return VoteNone, fmt.Errorf("vote type must be %q or %q", VoteUpvote, VoteDownvote)
}

// VoteAction describes what a vote call did to the ledger.
type VoteAction string

const (
	VoteAdded   VoteAction = "added"
	VoteRemoved VoteAction = "removed"
	VoteChanged VoteAction = "changed"
)

// CommentVote is a user's vote on a comment.
// The combination of UserID and CommentID must be unique.
type CommentVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_user_comment_vote,priority:2;index" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_comment_vote,priority:1" json:"user_id"`
	VoteType  VoteType  `gorm:"type:varchar(16);not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}

// VotePlan is the ledger change a vote request implies for one (user, comment) pair.
type VotePlan struct {
	Action       VoteAction
	Next         VoteType
	LikeDelta    int
	DislikeDelta int
}

// PlanVote applies the toggle rules: a first vote is added, repeating the same
// type removes it, and the opposite type switches it in place.
func PlanVote(current, requested VoteType) VotePlan {
	plan := VotePlan{}
	switch current {
	case VoteNone:
		plan.Action = VoteAdded
		plan.Next = requested
		plan.bump(requested, 1)
	case requested:
		plan.Action = VoteRemoved
		plan.Next = VoteNone
		plan.bump(current, -1)
	default:
		plan.Action = VoteChanged
		plan.Next = requested
		plan.bump(current, -1)
		plan.bump(requested, 1)
	}
	return plan
}

func (p *VotePlan) bump(t VoteType, delta int) {
	switch t {
	case VoteUpvote:
		p.LikeDelta += delta
	case VoteDownvote:
		p.DislikeDelta += delta
	}
}
