package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"modhub/internal/models"
	"modhub/internal/repository"
)

// AbuseThrottle bounds how many comments a user may create in a trailing
// window. Counts come from stored rows so every instance sees the same total.
type AbuseThrottle struct {
	comments repository.CommentRepository
	clock    Clock
	limit    int
	window   time.Duration
}

// NewAbuseThrottle rejects once a user has limit comments within window.
func NewAbuseThrottle(comments repository.CommentRepository, clock Clock, limit int, window time.Duration) *AbuseThrottle {
	return &AbuseThrottle{comments: comments, clock: clock, limit: limit, window: window}
}

// CountRecent returns how many comments the user created inside the window.
func (t *AbuseThrottle) CountRecent(ctx context.Context, userID uint) (int64, error) {
	now, err := t.clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("read clock: %w", err)
	}
	return t.comments.CountByUserSince(ctx, userID, now.Add(-t.window))
}

// Check returns a RATE_LIMITED error carrying the seconds until the oldest
// comment in the window ages out.
func (t *AbuseThrottle) Check(ctx context.Context, userID uint) error {
	now, err := t.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	since := now.Add(-t.window)

	count, err := t.comments.CountByUserSince(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("count recent comments: %w", err)
	}
	if count < int64(t.limit) {
		return nil
	}

	retryAfter := int64(t.window.Seconds())
	oldest, err := t.comments.OldestByUserSince(ctx, userID, since)
	if err == nil && oldest != nil {
		remaining := oldest.Add(t.window).Sub(now).Seconds()
		retryAfter = int64(math.Max(1, math.Ceil(remaining)))
	}
	return models.NewRateLimitedError(retryAfter)
}
