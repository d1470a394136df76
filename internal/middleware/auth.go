package middleware

import (
	"errors"
	"strconv"
	"strings"

	"modhub/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader = errors.New("Authorization header required")
	errHeaderFormat  = errors.New("Invalid authorization header format")
	errInvalidToken  = errors.New("Invalid or expired token")
	errTokenSubject  = errors.New("Invalid token subject")
)

// AuthRequired is a middleware that enforces authentication for protected routes.
// Tokens are issued elsewhere; only the "sub" claim is consumed here.
func AuthRequired(c *fiber.Ctx) error {
	userID, err := userIDFromHeader(c.Get("Authorization"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNAUTHORIZED",
		})
	}

	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
	return c.Next()
}

// OptionalAuth sets userID when a valid bearer token is present and otherwise
// lets the request through anonymously. A malformed token is still rejected.
func OptionalAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return c.Next()
	}
	return AuthRequired(c)
}

func userIDFromHeader(authHeader string) (uint, error) {
	if authHeader == "" {
		return 0, errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	// Subject claim per RFC 7519
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errTokenSubject
	}

	userIDVal, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userIDVal == 0 {
		return 0, errTokenSubject
	}

	return uint(userIDVal), nil
}
