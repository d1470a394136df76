package server

import (
	"net/url"

	"modhub/internal/models"
	"modhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns the flag states as seen by the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(userID(c)))
}

// ListForbiddenWords returns the blocklist.
func (s *Server) ListForbiddenWords(c *fiber.Ctx) error {
	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	words, err := s.adminService.ListWords(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(words)
}

// UpsertForbiddenWords adds words or changes their severity. The body is
// either a single {"word","severity"} entry or {"words":[...]}.
func (s *Server) UpsertForbiddenWords(c *fiber.Ctx) error {
	var req struct {
		service.WordEntry
		Words []service.WordEntry `json:"words"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	entries := req.Words
	if req.Word != "" {
		entries = append(entries, req.WordEntry)
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	saved, err := s.adminService.UpsertWords(c.UserContext(), actor, entries)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(saved)
}

// DeleteForbiddenWord removes a word from the blocklist.
func (s *Server) DeleteForbiddenWord(c *fiber.Ctx) error {
	word, err := url.PathUnescape(c.Params("word"))
	if err != nil {
		return respondError(c, models.NewValidationError("Invalid word"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.adminService.RemoveWord(c.UserContext(), actor, word); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetModerationSetting reports whether new comments wait for approval.
func (s *Server) GetModerationSetting(c *fiber.Ctx) error {
	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	enabled, err := s.adminService.ModerationEnabled(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"enabled": enabled})
}

// UpdateModerationSetting turns comment pre-moderation on or off.
func (s *Server) UpdateModerationSetting(c *fiber.Ctx) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil || req.Enabled == nil {
		return respondError(c, models.NewValidationError("Body must contain a boolean \"enabled\""))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.adminService.SetModerationEnabled(c.UserContext(), actor, *req.Enabled); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"enabled": *req.Enabled})
}

// UpdateUserRole changes a user's role.
func (s *Server) UpdateUserRole(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.adminService.SetRole(c.UserContext(), actor, targetID, req.Role); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": targetID, "role": req.Role})
}

// UpdateUserBan bans or unbans a user.
func (s *Server) UpdateUserBan(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Banned *bool `json:"banned"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil || req.Banned == nil {
		return respondError(c, models.NewValidationError("Body must contain a boolean \"banned\""))
	}

	actor, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.adminService.SetBanned(c.UserContext(), actor, targetID, *req.Banned); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": targetID, "banned": *req.Banned})
}
