package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"modhub/internal/models"
	"modhub/internal/observability"
	"modhub/internal/repository"
)

// TimeoutPolicy maps a violation severity to how long submissions are blocked.
type TimeoutPolicy map[models.Severity]time.Duration

// DefaultTimeoutPolicy is low→30m, medium→60m, high→120m.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		models.SeverityLow:    30 * time.Minute,
		models.SeverityMedium: 60 * time.Minute,
		models.SeverityHigh:   120 * time.Minute,
	}
}

// NewTimeoutPolicy builds a policy from per-severity minutes.
func NewTimeoutPolicy(lowMinutes, mediumMinutes, highMinutes int) TimeoutPolicy {
	return TimeoutPolicy{
		models.SeverityLow:    time.Duration(lowMinutes) * time.Minute,
		models.SeverityMedium: time.Duration(mediumMinutes) * time.Minute,
		models.SeverityHigh:   time.Duration(highMinutes) * time.Minute,
	}
}

// Duration returns the policy duration for severity, falling back to the
// high entry for anything unknown.
func (p TimeoutPolicy) Duration(severity models.Severity) time.Duration {
	if d, ok := p[severity]; ok {
		return d
	}
	return p[models.SeverityHigh]
}

// TimeoutEnforcer applies and evaluates time-boxed submission bans.
type TimeoutEnforcer struct {
	timeouts repository.TimeoutRepository
	clock    Clock
	policy   TimeoutPolicy
}

// NewTimeoutEnforcer creates a TimeoutEnforcer with the given policy.
func NewTimeoutEnforcer(timeouts repository.TimeoutRepository, clock Clock, policy TimeoutPolicy) *TimeoutEnforcer {
	if policy == nil {
		policy = DefaultTimeoutPolicy()
	}
	return &TimeoutEnforcer{timeouts: timeouts, clock: clock, policy: policy}
}

// Policy exposes the severity→duration table.
func (e *TimeoutEnforcer) Policy() TimeoutPolicy {
	return e.policy
}

// ActiveTimeout returns the most recent timeout still in force, or nil.
func (e *TimeoutEnforcer) ActiveTimeout(ctx context.Context, userID uint) (*models.ActiveTimeout, error) {
	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	timeout, err := e.timeouts.Active(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load active timeout: %w", err)
	}
	if timeout == nil {
		return nil, nil
	}

	remaining := int64(math.Ceil(timeout.TimeoutUntil.Sub(now).Seconds()))
	if remaining < 1 {
		remaining = 1
	}
	return &models.ActiveTimeout{
		Reason:           timeout.Reason,
		Severity:         timeout.Severity,
		TimeoutUntil:     timeout.TimeoutUntil,
		RemainingSeconds: remaining,
	}, nil
}

// Check returns an IN_TIMEOUT error when the user is currently timed out.
func (e *TimeoutEnforcer) Check(ctx context.Context, userID uint) error {
	active, err := e.ActiveTimeout(ctx, userID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	return models.NewInTimeoutError(active.Reason, active.Severity, active.RemainingSeconds)
}

// Apply appends a new timeout row. Earlier rows are left untouched.
// A zero duration uses the policy for severity.
func (e *TimeoutEnforcer) Apply(ctx context.Context, userID uint, reason string, severity models.Severity, duration time.Duration, createdBy *uint) (*models.UserTimeout, error) {
	if !severity.Valid() {
		return nil, models.NewValidationError("severity must be low, medium or high")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("timeout reason is required")
	}
	if duration <= 0 {
		duration = e.policy.Duration(severity)
	}

	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	timeout := &models.UserTimeout{
		UserID:       userID,
		Reason:       reason,
		Severity:     severity,
		TimeoutUntil: now.Add(duration),
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}
	if err := e.timeouts.Create(ctx, timeout); err != nil {
		return nil, fmt.Errorf("create timeout: %w", err)
	}

	observability.TimeoutsApplied.WithLabelValues(severity.String()).Inc()
	return timeout, nil
}

// History lists a user's timeouts, newest first.
func (e *TimeoutEnforcer) History(ctx context.Context, userID uint, limit int) ([]*models.UserTimeout, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return e.timeouts.ListByUser(ctx, userID, limit)
}
