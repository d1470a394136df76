package server

import (
	"modhub/internal/models"
	"modhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListComments returns a mod's visible comments (public). With ?replies=true
// the result is a thread tree, otherwise root comments only.
func (s *Server) ListComments(c *fiber.Ctx) error {
	modID, err := parseID(c, "modId")
	if err != nil {
		return nil
	}

	viewer, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	nodes, err := s.commentService.List(c.UserContext(), service.ListCommentsInput{
		ModID:          modID,
		Viewer:         viewer,
		IncludeReplies: c.QueryBool("replies", false),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(nodes)
}

// CreateComment submits a root comment on a mod (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	modID, err := parseID(c, "modId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
		Rating  *int   `json:"rating"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	created, err := s.commentService.Submit(c.UserContext(), service.SubmitCommentInput{
		Actor:   actor,
		ModID:   modID,
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if !created.IsApproved {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{
		"comment": created,
		"status":  created.State(),
	})
}

// CreateReply answers an existing comment (protected). Replies are published
// immediately.
func (s *Server) CreateReply(c *fiber.Ctx) error {
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
		ModID   uint   `json:"mod_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	created, err := s.commentService.Reply(c.UserContext(), service.ReplyInput{
		Actor:    actor,
		ParentID: parentID,
		ModID:    req.ModID,
		Content:  req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// DeleteComment removes a comment (author or moderator)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.commentService.Delete(c.UserContext(), actor, commentID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoteComment records an upvote or downvote; repeating a vote removes it.
func (s *Server) VoteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Type string `json:"type"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.voteService.Vote(c.UserContext(), actor, commentID, req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetCommentVote reports the caller's current vote on a comment.
func (s *Server) GetCommentVote(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	vote, err := s.voteService.CurrentVote(c.UserContext(), userID(c), commentID)
	if err != nil {
		return respondError(c, err)
	}
	if vote == models.VoteNone {
		vote = "none"
	}
	return c.JSON(fiber.Map{"comment_id": commentID, "vote": vote})
}
