package models

import (
	"time"
)

// CommentState is the moderation lifecycle position of a comment.
type CommentState string

const (
	StatePending  CommentState = "PENDING"
	StateApproved CommentState = "APPROVED"
	StateRejected CommentState = "REJECTED"
)

// Comment represents a comment on a mod. Replies set ParentID and never carry
// a rating.
type Comment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ModID           uint       `gorm:"not null;index:idx_comments_mod_created,priority:1" json:"mod_id"`
	UserID          uint       `gorm:"not null;index:idx_comments_user_created,priority:1" json:"user_id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Rating          *int       `json:"rating,omitempty"`
	ParentID        *uint      `gorm:"index" json:"parent_id,omitempty"`
	ReplyToUserID   *uint      `json:"reply_to_user_id,omitempty"`
	IsApproved      bool       `gorm:"not null;default:false;index" json:"is_approved"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *uint      `json:"rejected_by,omitempty"`
	LikeCount       int        `gorm:"not null;default:0" json:"like_count"`
	DislikeCount    int        `gorm:"not null;default:0" json:"dislike_count"`
	CreatedAt       time.Time  `gorm:"index:idx_comments_mod_created,priority:2;index:idx_comments_user_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Users are provisioned by the identity service and may have no local row,
	// so the association carries no foreign key.
	User *User `gorm:"foreignKey:UserID;constraint:-" json:"user,omitempty"`
	// UserVote is the requesting viewer's vote; not persisted.
	UserVote VoteType `gorm:"-" json:"user_vote,omitempty"`
}

// State derives the lifecycle state from the stored flags.
func (c *Comment) State() CommentState {
	switch {
	case c.IsApproved:
		return StateApproved
	case c.RejectedAt != nil:
		return StateRejected
	default:
		return StatePending
	}
}

// IsReply reports whether the comment is attached to a parent.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentNode is a comment with its nested replies for threaded display.
type CommentNode struct {
	*Comment
	Replies []*CommentNode `json:"replies"`
}
