package service

import (
	"context"
	"testing"

	"modhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_Blocklist(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()
	admin := e.actor(e.fx.Admin)

	_, err := e.admin.UpsertWords(ctx, e.actor(e.fx.Moderator), []WordEntry{{Word: "x", Severity: "low"}})
	requireAppError(t, err, models.CodeForbidden)

	saved, err := e.admin.UpsertWords(ctx, admin, []WordEntry{
		{Word: "  Spam ", Severity: "low"},
		{Word: "scam", Severity: "MEDIUM"},
		{Word: "spam", Severity: "high"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "spam", saved[0].Word)
	assert.Equal(t, models.SeverityHigh, saved[0].Severity)

	words, err := e.admin.ListWords(ctx, admin)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "scam", words[0].Word)
	assert.Equal(t, models.SeverityMedium, words[0].Severity)

	_, err = e.admin.UpsertWords(ctx, admin, []WordEntry{{Word: "scam", Severity: "low"}})
	require.NoError(t, err)
	matches, err := e.filter.DetectForbiddenWords(ctx, "total scam")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.SeverityLow, matches[0].Severity)

	require.NoError(t, e.admin.RemoveWord(ctx, admin, "SCAM"))
	err = e.admin.RemoveWord(ctx, admin, "scam")
	requireAppError(t, err, models.CodeNotFound)

	matches, err = e.filter.DetectForbiddenWords(ctx, "total scam")
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestAdminService_UpsertWordsValidation(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()
	admin := e.actor(e.fx.Admin)

	tests := []struct {
		name    string
		entries []WordEntry
	}{
		{"no entries", nil},
		{"blank word", []WordEntry{{Word: " ", Severity: "low"}}},
		{"two tokens", []WordEntry{{Word: "two words", Severity: "low"}}},
		{"bad severity", []WordEntry{{Word: "ok", Severity: "extreme"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.admin.UpsertWords(ctx, admin, tt.entries)
			requireAppError(t, err, models.CodeValidation)
		})
	}
}

func TestAdminService_ManualTimeout(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()
	moderator := e.actor(e.fx.Moderator)

	_, err := e.admin.ApplyTimeout(ctx, e.actor(e.fx.Other), TimeoutInput{UserID: e.fx.Author.ID, Reason: "r", Severity: "low"})
	requireAppError(t, err, models.CodeForbidden)

	_, err = e.admin.ApplyTimeout(ctx, moderator, TimeoutInput{UserID: 9999, Reason: "r", Severity: "low"})
	requireAppError(t, err, models.CodeNotFound)

	_, err = e.admin.ApplyTimeout(ctx, moderator, TimeoutInput{UserID: e.fx.Author.ID, Reason: "r", Severity: "nope"})
	requireAppError(t, err, models.CodeValidation)

	timeout, err := e.admin.ApplyTimeout(ctx, moderator, TimeoutInput{UserID: e.fx.Author.ID, Reason: "cool off", Severity: "low", Minutes: 5})
	require.NoError(t, err)
	require.NotNil(t, timeout.CreatedBy)
	assert.Equal(t, e.fx.Moderator.ID, *timeout.CreatedBy)

	_, err = e.comments.Submit(ctx, SubmitCommentInput{Actor: e.actor(e.fx.Author), ModID: e.fx.Mod.ID, Content: "hi"})
	appErr := requireAppError(t, err, models.CodeInTimeout)
	assert.EqualValues(t, 300, appErr.Details["remainingSeconds"])

	history, err := e.admin.TimeoutHistory(ctx, moderator, e.fx.Author.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, AuditUserTimeout, e.auditor.Last().Action)
}

func TestAdminService_ModerationSwitch(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()
	admin := e.actor(e.fx.Admin)

	enabled, err := e.admin.ModerationEnabled(ctx, admin)
	require.NoError(t, err)
	assert.True(t, enabled, "absent setting defaults to enabled")

	require.NoError(t, e.admin.SetModerationEnabled(ctx, admin, false))
	enabled, err = e.admin.ModerationEnabled(ctx, admin)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.True(t, e.submit(t, e.fx.Author, "instant").IsApproved)

	err = e.admin.SetModerationEnabled(ctx, e.actor(e.fx.Moderator), true)
	requireAppError(t, err, models.CodeForbidden)
}

func TestAdminService_RolesAndBans(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.admin.SetRole(ctx, SystemActor, e.fx.Other.ID, models.RoleModerator))
	var u models.User
	require.NoError(t, e.db.First(&u, e.fx.Other.ID).Error)
	assert.Equal(t, models.RoleModerator, u.Role)

	err := e.admin.SetRole(ctx, SystemActor, e.fx.Other.ID, "overlord")
	requireAppError(t, err, models.CodeValidation)

	require.NoError(t, e.admin.SetBanned(ctx, SystemActor, e.fx.Author.ID, true))
	_, err = e.comments.Submit(ctx, SubmitCommentInput{Actor: e.actor(e.fx.Author), ModID: e.fx.Mod.ID, Content: "hi"})
	requireAppError(t, err, models.CodeBanned)

	err = e.admin.SetBanned(ctx, SystemActor, 9999, true)
	requireAppError(t, err, models.CodeNotFound)

	err = e.admin.SetBanned(ctx, e.actor(e.fx.Moderator), e.fx.Author.ID, false)
	requireAppError(t, err, models.CodeForbidden)
}
