package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"modhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when the counter store is down.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

const rateLimitKeyPrefix = "modhub:rl:"

var errNoLimiterStore = errors.New("rate limit store not configured")

// RateLimitKey is the redis key holding the counter for one caller on one resource.
func RateLimitKey(resource, id string) string {
	return rateLimitKeyPrefix + resource + ":" + id
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// CheckRateLimit counts one call against a fixed window and reports whether
// it is within limit, plus the time left in the window when it is not.
// Limits are not enforced when APP_ENV is unset, "test", "development" or "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, time.Duration, error) {
	if rateLimitBypassed() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, errNoLimiterStore
	}

	key := RateLimitKey(resource, id)
	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("count %s: %w", resource, err)
	}
	if incr.Val() <= int64(limit) {
		return true, 0, nil
	}

	left, err := rdb.TTL(ctx, key).Result()
	if err != nil || left <= 0 {
		left = window
	}
	return false, left, nil
}

// RateLimit enforces limit calls per window, keyed by the authenticated user
// when there is one and the client IP otherwise. A store outage fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit outage policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid := c.Locals("userID"); uid != nil {
			caller = fmt.Sprintf("user:%v", uid)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		ok, left, err := CheckRateLimit(c.UserContext(), rdb, resource, caller, limit, window)
		switch {
		case err != nil && policy == FailClosed:
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Rate limiting unavailable",
				Code:  models.CodeInternal,
			})
		case err != nil:
			return c.Next()
		case ok:
			return c.Next()
		}

		seconds := int64(math.Max(1, math.Ceil(left.Seconds())))
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(seconds, 10))
		return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
			Error:   "Too many requests",
			Code:    models.CodeRateLimited,
			Details: map[string]any{"retryAfterSeconds": seconds},
		})
	}
}
