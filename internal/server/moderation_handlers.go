package server

import (
	"modhub/internal/models"
	"modhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPendingComments returns the moderation queue, optionally for one mod.
func (s *Server) ListPendingComments(c *fiber.Ctx) error {
	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	var modID *uint
	if raw := c.QueryInt("mod_id", 0); raw > 0 {
		id := uint(raw)
		modID = &id
	}
	page := parsePagination(c, 50)

	comments, err := s.commentService.ListPending(c.UserContext(), actor, modID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// ApproveComment publishes a pending comment.
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.Approve(c.UserContext(), actor, commentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// RejectComment rejects a pending comment with a reason.
func (s *Server) RejectComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.Reject(c.UserContext(), actor, commentID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// GetTimeoutHistory lists a user's timeouts, newest first.
func (s *Server) GetTimeoutHistory(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	history, err := s.adminService.TimeoutHistory(c.UserContext(), actor, targetID, parsePagination(c, 20).Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

// CreateTimeout times a user out manually.
func (s *Server) CreateTimeout(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason   string `json:"reason"`
		Severity string `json:"severity"`
		Minutes  int    `json:"minutes"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	timeout, err := s.adminService.ApplyTimeout(c.UserContext(), actor, service.TimeoutInput{
		UserID:   targetID,
		Reason:   req.Reason,
		Severity: req.Severity,
		Minutes:  req.Minutes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(timeout)
}
