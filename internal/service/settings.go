package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"modhub/internal/cache"
	"modhub/internal/middleware"
	"modhub/internal/models"
	"modhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

// ModerationSettings reads and writes the moderation_enabled switch.
type ModerationSettings struct {
	settings repository.SettingRepository
	rdb      *redis.Client
}

// NewModerationSettings creates a ModerationSettings backed by the settings store.
func NewModerationSettings(settings repository.SettingRepository, rdb *redis.Client) *ModerationSettings {
	return &ModerationSettings{settings: settings, rdb: rdb}
}

// ModerationEnabled reports whether new root comments start PENDING. An
// absent key means enabled; so does a store failure, which is logged.
func (m *ModerationSettings) ModerationEnabled(ctx context.Context) bool {
	enabled := true
	err := cache.Aside(ctx, m.rdb, cache.SettingKey(models.SettingModerationEnabled), &enabled, cache.SettingTTL, func() error {
		raw, ok, err := m.settings.Get(ctx, models.SettingModerationEnabled)
		if err != nil {
			return err
		}
		enabled = true
		if ok {
			parsed, perr := strconv.ParseBool(raw)
			if perr == nil {
				enabled = parsed
			}
		}
		return nil
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "moderation flag unavailable, assuming enabled",
			slog.String("error", err.Error()),
		)
		return true
	}
	return enabled
}

// SetModerationEnabled persists the switch and drops the cached value.
func (m *ModerationSettings) SetModerationEnabled(ctx context.Context, enabled bool) error {
	if err := m.settings.Set(ctx, models.SettingModerationEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("save moderation flag: %w", err)
	}
	cache.Invalidate(ctx, m.rdb, cache.SettingKey(models.SettingModerationEnabled))
	return nil
}
