package server

import (
	"modhub/internal/models"
	"modhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

const roleLocal = "role"

// userID returns the authenticated caller, or zero for anonymous requests.
func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// actor resolves the caller's role and request metadata. The role is read
// once per request and cached in locals.
func (s *Server) actor(c *fiber.Ctx) (service.Actor, error) {
	a := service.Actor{
		UserID:    userID(c),
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if a.UserID == 0 {
		return a, nil
	}
	if role, ok := c.Locals(roleLocal).(string); ok {
		a.Role = role
		return a, nil
	}
	role, err := s.userRepo.GetRole(c.UserContext(), a.UserID)
	if err != nil {
		return a, err
	}
	c.Locals(roleLocal, role)
	a.Role = role
	return a, nil
}

// requireRole returns middleware that rejects callers whose role fails allowed.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) requireRole(allowed func(string) bool, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := s.actor(c)
		if err != nil {
			return respondError(c, err)
		}
		if !allowed(a.Role) {
			return respondError(c, models.NewForbiddenError(message))
		}
		return c.Next()
	}
}

// ModeratorRequired admits moderators, admins and supervisors.
func (s *Server) ModeratorRequired() fiber.Handler {
	return s.requireRole(models.IsPrivilegedRole, "Moderator access required")
}

// AdminRequired admits admins and supervisors.
func (s *Server) AdminRequired() fiber.Handler {
	return s.requireRole(models.IsAdminRole, "Admin access required")
}
