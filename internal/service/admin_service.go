package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modhub/internal/models"
	"modhub/internal/repository"

	"gorm.io/gorm"
)

// SystemActor is used by operator tooling that runs outside a request.
var SystemActor = Actor{Role: models.RoleSupervisor, UserAgent: "modhub-admin"}

// WordEntry is one blocklist word as supplied by an operator.
type WordEntry struct {
	Word     string `json:"word" yaml:"word"`
	Severity string `json:"severity" yaml:"severity"`
}

// AdminService holds the operator-facing controls around the engine: the
// blocklist, manual timeouts, user roles and bans, and the moderation switch.
type AdminService struct {
	words    repository.ForbiddenWordRepository
	users    repository.UserRepository
	filter   *ContentFilter
	timeouts *TimeoutEnforcer
	settings *ModerationSettings
	auditor  Auditor
}

func NewAdminService(
	words repository.ForbiddenWordRepository,
	users repository.UserRepository,
	filter *ContentFilter,
	timeouts *TimeoutEnforcer,
	settings *ModerationSettings,
	auditor Auditor,
) *AdminService {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &AdminService{
		words:    words,
		users:    users,
		filter:   filter,
		timeouts: timeouts,
		settings: settings,
		auditor:  auditor,
	}
}

func requireAdmin(actor Actor) error {
	if !models.IsAdminRole(actor.Role) {
		return models.NewForbiddenError("Admin role required")
	}
	return nil
}

func requireModerator(actor Actor) error {
	if !actor.IsPrivileged() {
		return models.NewForbiddenError("Moderator role required")
	}
	return nil
}

// ListWords returns the blocklist in word order.
func (s *AdminService) ListWords(ctx context.Context, actor Actor) ([]*models.ForbiddenWord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	words, err := s.words.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forbidden words: %w", err)
	}
	return words, nil
}

// UpsertWords adds words or replaces their severity. Words are stored in the
// normalized token form so they match what the filter compares against. A
// word listed twice keeps its last severity.
func (s *AdminService) UpsertWords(ctx context.Context, actor Actor, entries []WordEntry) ([]*models.ForbiddenWord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.NewValidationError("At least one word is required")
	}

	byWord := make(map[string]*models.ForbiddenWord, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		word := NormalizeToken(strings.TrimSpace(e.Word))
		if word == "" || len(strings.Fields(word)) != 1 {
			return nil, models.NewValidationError(fmt.Sprintf("Invalid forbidden word %q: must be a single token", e.Word))
		}
		severity, err := models.ParseSeverity(e.Severity)
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Invalid severity for %q: %v", e.Word, err))
		}
		if _, ok := byWord[word]; !ok {
			order = append(order, word)
		}
		byWord[word] = &models.ForbiddenWord{Word: word, Severity: severity}
	}

	words := make([]*models.ForbiddenWord, 0, len(order))
	for _, w := range order {
		words = append(words, byWord[w])
	}
	if err := s.words.Upsert(ctx, words...); err != nil {
		return nil, fmt.Errorf("save forbidden words: %w", err)
	}
	s.filter.InvalidateBlocklist(ctx)

	s.auditor.Record(ctx, NewAuditEvent(AuditBlocklistChange, actor, "forbidden_word", 0, map[string]any{
		"op":    "upsert",
		"count": len(words),
	}))
	return words, nil
}

// RemoveWord deletes a word from the blocklist.
func (s *AdminService) RemoveWord(ctx context.Context, actor Actor, raw string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	word := NormalizeToken(strings.TrimSpace(raw))
	if word == "" {
		return models.NewValidationError("Word is required")
	}

	removed, err := s.words.Delete(ctx, word)
	if err != nil {
		return fmt.Errorf("delete forbidden word: %w", err)
	}
	if !removed {
		return models.NewNotFoundError("Forbidden word", word)
	}
	s.filter.InvalidateBlocklist(ctx)

	s.auditor.Record(ctx, NewAuditEvent(AuditBlocklistChange, actor, "forbidden_word", 0, map[string]any{
		"op":   "remove",
		"word": word,
	}))
	return nil
}

// TimeoutInput is a manual timeout issued by a moderator.
type TimeoutInput struct {
	UserID   uint
	Reason   string
	Severity string
	// Minutes overrides the policy duration when positive.
	Minutes int
}

// ApplyTimeout times a user out on a moderator's behalf.
func (s *AdminService) ApplyTimeout(ctx context.Context, actor Actor, in TimeoutInput) (*models.UserTimeout, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	severity, err := models.ParseSeverity(in.Severity)
	if err != nil {
		return nil, models.NewValidationError("Severity must be low, medium or high")
	}
	if in.Minutes < 0 {
		return nil, models.NewValidationError("Minutes must not be negative")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, translateStoreError(err, "User", in.UserID, "load user")
	}

	var createdBy *uint
	if actor.UserID != 0 {
		id := actor.UserID
		createdBy = &id
	}
	timeout, err := s.timeouts.Apply(ctx, in.UserID, in.Reason, severity, time.Duration(in.Minutes)*time.Minute, createdBy)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, NewAuditEvent(AuditUserTimeout, actor, "user", in.UserID, map[string]any{
		"source":        "moderator",
		"severity":      severity.String(),
		"timeout_until": timeout.TimeoutUntil.Format(time.RFC3339),
	}))
	return timeout, nil
}

// TimeoutHistory lists a user's timeouts, newest first.
func (s *AdminService) TimeoutHistory(ctx context.Context, actor Actor, userID uint, limit int) ([]*models.UserTimeout, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	history, err := s.timeouts.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list timeouts: %w", err)
	}
	return history, nil
}

// ModerationEnabled reads the moderation switch.
func (s *AdminService) ModerationEnabled(ctx context.Context, actor Actor) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	return s.settings.ModerationEnabled(ctx), nil
}

// SetModerationEnabled flips the moderation switch. It only affects comments
// submitted afterwards.
func (s *AdminService) SetModerationEnabled(ctx context.Context, actor Actor, enabled bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.settings.SetModerationEnabled(ctx, enabled); err != nil {
		return err
	}
	s.auditor.Record(ctx, NewAuditEvent(AuditModerationSetting, actor, "setting", 0, map[string]any{
		"moderation_enabled": enabled,
	}))
	return nil
}

// SetRole changes a user's role.
func (s *AdminService) SetRole(ctx context.Context, actor Actor, userID uint, role string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	switch role {
	case models.RoleUser, models.RoleModerator, models.RoleAdmin, models.RoleSupervisor:
	default:
		return models.NewValidationError(fmt.Sprintf("Unknown role %q", role))
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return translateStoreError(err, "User", userID, "set role")
	}
	return nil
}

// SetBanned bans or unbans a user. Banned users' comments disappear from listings.
func (s *AdminService) SetBanned(ctx context.Context, actor Actor, userID uint, banned bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	err := s.users.SetBanned(ctx, userID, banned)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("User", userID)
	}
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	return nil
}
