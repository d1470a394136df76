package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"modhub/internal/models"
	"modhub/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitResponse struct {
	Comment models.Comment      `json:"comment"`
	Status  models.CommentState `json:"status"`
}

type threadNode struct {
	ID       uint          `json:"id"`
	Content  string        `json:"content"`
	UserVote string        `json:"user_vote"`
	Replies  []*threadNode `json:"replies"`
}

func TestHealth(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		h := newHarness(t)

		var body map[string]any
		resp := h.do(http.MethodGet, "/health", nil, nil, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "disabled", checks["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		h := newHarness(t, rdb)
		mr.Close()

		var body map[string]any
		resp := h.do(http.MethodGet, "/health", nil, nil, &body)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "unhealthy", body["checks"].(map[string]any)["redis"])
	})

	t.Run("liveness", func(t *testing.T) {
		h := newHarness(t)
		resp := h.do(http.MethodGet, "/health/live", nil, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestCommentLifecycle(t *testing.T) {
	h := newHarness(t)
	author, mod, other := h.fx.Author, h.fx.Moderator, h.fx.Other

	var created submitResponse
	resp := h.do(http.MethodPost, h.commentsPath(), author, fiber.Map{"content": "  Works great  ", "rating": 5}, &created)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, models.StatePending, created.Status)
	assert.Equal(t, "Works great", created.Comment.Content)
	commentID := created.Comment.ID

	var anon []*threadNode
	h.do(http.MethodGet, h.commentsPath(), nil, nil, &anon)
	assert.Empty(t, anon, "pending comments are hidden from anonymous viewers")

	var own []*threadNode
	h.do(http.MethodGet, h.commentsPath(), author, nil, &own)
	require.Len(t, own, 1, "authors see their own pending comment")

	resp = h.do(http.MethodPost, fmt.Sprintf("/api/moderation/comments/%d/approve", commentID), mod, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h.do(http.MethodGet, h.commentsPath(), nil, nil, &anon)
	require.Len(t, anon, 1)

	var vote map[string]any
	resp = h.do(http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", commentID), other, fiber.Map{"type": "upvote"}, &vote)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "added", vote["action"])
	assert.EqualValues(t, 1, vote["like_count"])

	var reply models.Comment
	resp = h.do(http.MethodPost, fmt.Sprintf("/api/comments/%d/replies", commentID), other,
		fiber.Map{"content": "Agreed", "mod_id": h.fx.Mod.ID}, &reply)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, reply.IsApproved)
	require.NotNil(t, reply.ReplyToUserID)
	assert.Equal(t, author.ID, *reply.ReplyToUserID)

	var roots []*threadNode
	h.do(http.MethodGet, h.commentsPath(), other, nil, &roots)
	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Replies)

	var tree []*threadNode
	h.do(http.MethodGet, h.commentsPath()+"?replies=true", other, nil, &tree)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "Agreed", tree[0].Replies[0].Content)

	var mod1 models.Mod
	require.NoError(t, h.db.First(&mod1, h.fx.Mod.ID).Error)
	assert.Equal(t, 2, mod1.CommentCount)
}

func TestCreateComment_Rejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		user   *models.User
		path   string
		body   any
		status int
		code   string
	}{
		{"anonymous", nil, h.commentsPath(), fiber.Map{"content": "hi"}, http.StatusUnauthorized, models.CodeUnauthorized},
		{"empty", h.fx.Author, h.commentsPath(), fiber.Map{"content": "   "}, http.StatusBadRequest, models.CodeEmptyContent},
		{"bad rating", h.fx.Author, h.commentsPath(), fiber.Map{"content": "ok", "rating": 9}, http.StatusBadRequest, models.CodeValidation},
		{"malicious", h.fx.Author, h.commentsPath(), fiber.Map{"content": "<script>alert(1)</script>"}, http.StatusBadRequest, models.CodeMaliciousContent},
		{"banned", h.fx.Banned, h.commentsPath(), fiber.Map{"content": "hello"}, http.StatusForbidden, models.CodeBanned},
		{"unknown mod", h.fx.Author, "/api/mods/9999/comments", fiber.Map{"content": "hello"}, http.StatusNotFound, models.CodeNotFound},
		{"bad mod id", h.fx.Author, "/api/mods/abc/comments", fiber.Map{"content": "hello"}, http.StatusBadRequest, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			resp := h.do(http.MethodPost, tt.path, tt.user, tt.body, &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	var rows int64
	require.NoError(t, h.db.Model(&models.Comment{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestCreateComment_MaliciousBodyIsNotEchoed(t *testing.T) {
	h := newHarness(t)

	var body models.ErrorResponse
	h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "<iframe src=x>"}, &body)

	assert.Equal(t, models.CodeMaliciousContent, body.Code)
	assert.NotContains(t, body.Error, "iframe")
	assert.NotContains(t, fmt.Sprint(body.Details), "203.0.113")
}

func TestForbiddenWordsApplyTimeout(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/admin/forbidden-words", h.fx.Admin,
		fiber.Map{"word": "Darn", "severity": "medium"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var blocked models.ErrorResponse
	resp = h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "well darn it"}, &blocked)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbiddenWords, blocked.Code)
	assert.Equal(t, "medium", blocked.Details["severity"])
	assert.EqualValues(t, 60, blocked.Details["durationMinutes"])
	assert.NotContains(t, blocked.Error, "darn")

	var timedOut models.ErrorResponse
	resp = h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "a polite note"}, &timedOut)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeInTimeout, timedOut.Code)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	var history []models.UserTimeout
	resp = h.do(http.MethodGet, fmt.Sprintf("/api/moderation/users/%d/timeouts", h.fx.Author.ID), h.fx.Moderator, nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 1)
	assert.Equal(t, models.SeverityMedium, history[0].Severity)
	assert.Nil(t, history[0].CreatedBy)
}

func TestCreateComment_RateLimited(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.srv.adminService.SetModerationEnabled(context.Background(), service.SystemActor, false))

	for i := 0; i < 3; i++ {
		resp := h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": fmt.Sprintf("comment %d", i)}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var body models.ErrorResponse
	resp := h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "one more"}, &body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRateLimited, body.Code)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestRoleGates(t *testing.T) {
	h := newHarness(t)
	pending := &models.Comment{ModID: h.fx.Mod.ID, UserID: h.fx.Author.ID, Content: "waiting"}
	require.NoError(t, h.db.Create(pending).Error)

	tests := []struct {
		name   string
		method string
		path   string
		user   *models.User
		status int
	}{
		{"user cannot approve", http.MethodPost, fmt.Sprintf("/api/moderation/comments/%d/approve", pending.ID), h.fx.Other, http.StatusForbidden},
		{"user cannot read queue", http.MethodGet, "/api/moderation/comments/pending", h.fx.Author, http.StatusForbidden},
		{"moderator reads queue", http.MethodGet, "/api/moderation/comments/pending", h.fx.Moderator, http.StatusOK},
		{"moderator cannot manage blocklist", http.MethodGet, "/api/admin/forbidden-words", h.fx.Moderator, http.StatusForbidden},
		{"admin manages blocklist", http.MethodGet, "/api/admin/forbidden-words", h.fx.Admin, http.StatusOK},
		{"anonymous admin", http.MethodGet, "/api/admin/settings/moderation", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(tt.method, tt.path, tt.user, nil, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	var queue []models.Comment
	h.do(http.MethodGet, "/api/moderation/comments/pending?mod_id="+fmt.Sprint(h.fx.Mod.ID), h.fx.Moderator, nil, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)
}

func TestRejectThenApproveConflicts(t *testing.T) {
	h := newHarness(t)
	pending := &models.Comment{ModID: h.fx.Mod.ID, UserID: h.fx.Author.ID, Content: "borderline"}
	require.NoError(t, h.db.Create(pending).Error)
	base := fmt.Sprintf("/api/moderation/comments/%d", pending.ID)

	var body models.ErrorResponse
	resp := h.do(http.MethodPost, base+"/reject", h.fx.Moderator, fiber.Map{"reason": " "}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var rejected models.Comment
	resp = h.do(http.MethodPost, base+"/reject", h.fx.Moderator, fiber.Map{"reason": "off topic"}, &rejected)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StateRejected, rejected.State())

	resp = h.do(http.MethodPost, base+"/approve", h.fx.Moderator, nil, &body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidState, body.Code)

	resp = h.do(http.MethodPost, "/api/moderation/comments/9999/approve", h.fx.Moderator, nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateComment_TokenUserWithoutLocalRow(t *testing.T) {
	h := newHarness(t)
	stranger := &models.User{ID: 4242}

	var created submitResponse
	resp := h.do(http.MethodPost, h.commentsPath(), stranger, fiber.Map{"content": "hello from elsewhere"}, &created)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, uint(4242), created.Comment.UserID)

	var mine []*threadNode
	h.do(http.MethodGet, h.commentsPath(), stranger, nil, &mine)
	require.Len(t, mine, 1, "a pending comment stays visible to its author")
}

func TestDeleteComment(t *testing.T) {
	h := newHarness(t)
	c := h.approvedComment(h.fx.Author, "mine")
	path := fmt.Sprintf("/api/comments/%d", c.ID)

	resp := h.do(http.MethodDelete, path, h.fx.Other, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(http.MethodDelete, path, h.fx.Author, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(http.MethodDelete, path, h.fx.Author, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	other := h.approvedComment(h.fx.Author, "theirs")
	resp = h.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", other.ID), h.fx.Moderator, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestVoteComment(t *testing.T) {
	h := newHarness(t)
	c := h.approvedComment(h.fx.Author, "vote on me")
	path := fmt.Sprintf("/api/comments/%d/vote", c.ID)

	var body models.ErrorResponse
	resp := h.do(http.MethodPost, path, h.fx.Other, fiber.Map{"type": "sideways"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	steps := []struct {
		voteType string
		action   string
		likes    int
		dislikes int
		previous string
	}{
		{"upvote", "added", 1, 0, ""},
		{"downvote", "changed", 0, 1, "upvote"},
		{"downvote", "removed", 0, 0, ""},
	}
	for _, step := range steps {
		var result map[string]any
		resp := h.do(http.MethodPost, path, h.fx.Other, fiber.Map{"type": step.voteType}, &result)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, step.action, result["action"])
		assert.EqualValues(t, step.likes, result["like_count"])
		assert.EqualValues(t, step.dislikes, result["dislike_count"])
		if step.previous == "" {
			assert.NotContains(t, result, "previous_vote")
		} else {
			assert.Equal(t, step.previous, result["previous_vote"])
		}

		var current map[string]any
		resp = h.do(http.MethodGet, path, h.fx.Other, nil, &current)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		want := step.voteType
		if step.action == "removed" {
			want = "none"
		}
		assert.Equal(t, want, current["vote"])
	}

	resp = h.do(http.MethodGet, path, nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	pending := &models.Comment{ModID: h.fx.Mod.ID, UserID: h.fx.Author.ID, Content: "pending"}
	require.NoError(t, h.db.Create(pending).Error)
	resp = h.do(http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", pending.ID), h.fx.Other, fiber.Map{"type": "upvote"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other users cannot see the pending comment")
}

func TestListComments_ViewerVotes(t *testing.T) {
	h := newHarness(t)
	c := h.approvedComment(h.fx.Author, "rate this")
	h.do(http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", c.ID), h.fx.Other, fiber.Map{"type": "downvote"}, nil)

	var nodes []*threadNode
	h.do(http.MethodGet, h.commentsPath(), h.fx.Other, nil, &nodes)
	require.Len(t, nodes, 1)
	assert.Equal(t, "downvote", nodes[0].UserVote)

	h.do(http.MethodGet, h.commentsPath(), nil, nil, &nodes)
	require.Len(t, nodes, 1)
	assert.Empty(t, nodes[0].UserVote)
}

func TestAdminBlocklistRoutes(t *testing.T) {
	h := newHarness(t)
	admin := h.fx.Admin

	var saved []models.ForbiddenWord
	resp := h.do(http.MethodPost, "/api/admin/forbidden-words", admin, fiber.Map{
		"words": []fiber.Map{
			{"word": "heck", "severity": "low"},
			{"word": "café", "severity": "high"},
		},
	}, &saved)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, saved, 2)

	var body models.ErrorResponse
	resp = h.do(http.MethodPost, "/api/admin/forbidden-words", admin, fiber.Map{"word": "two words", "severity": "low"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(http.MethodDelete, "/api/admin/forbidden-words/caf%C3%A9", admin, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(http.MethodDelete, "/api/admin/forbidden-words/nothere", admin, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var words []models.ForbiddenWord
	h.do(http.MethodGet, "/api/admin/forbidden-words", admin, nil, &words)
	require.Len(t, words, 1)
	assert.Equal(t, "heck", words[0].Word)
	assert.Equal(t, models.SeverityLow, words[0].Severity)
}

func TestModerationSettingRoutes(t *testing.T) {
	h := newHarness(t)

	var setting map[string]bool
	h.do(http.MethodGet, "/api/admin/settings/moderation", h.fx.Admin, nil, &setting)
	assert.True(t, setting["enabled"])

	resp := h.do(http.MethodPut, "/api/admin/settings/moderation", h.fx.Admin, fiber.Map{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(http.MethodPut, "/api/admin/settings/moderation", h.fx.Admin, fiber.Map{"enabled": false}, &setting)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, setting["enabled"])

	var created submitResponse
	resp = h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "straight through"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.StateApproved, created.Status)
}

func TestManualTimeoutRoutes(t *testing.T) {
	h := newHarness(t)
	path := fmt.Sprintf("/api/moderation/users/%d/timeouts", h.fx.Author.ID)

	var body models.ErrorResponse
	resp := h.do(http.MethodPost, path, h.fx.Moderator, fiber.Map{"reason": "spam", "severity": "extreme"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var timeout models.UserTimeout
	resp = h.do(http.MethodPost, path, h.fx.Moderator, fiber.Map{"reason": "spam", "severity": "low", "minutes": 5}, &timeout)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, timeout.CreatedBy)
	assert.Equal(t, h.fx.Moderator.ID, *timeout.CreatedBy)

	resp = h.do(http.MethodPost, h.commentsPath(), h.fx.Author, fiber.Map{"content": "am I back?"}, &body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeInTimeout, body.Code)
	assert.Equal(t, "spam", body.Details["reason"])

	resp = h.do(http.MethodPost, fmt.Sprintf("/api/moderation/users/%d/timeouts", 9999), h.fx.Moderator,
		fiber.Map{"reason": "x", "severity": "low"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminUserRoutes(t *testing.T) {
	h := newHarness(t)
	target := h.fx.Other

	resp := h.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", target.ID), h.fx.Admin, fiber.Map{"role": "overlord"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", target.ID), h.fx.Admin, fiber.Map{"role": "moderator"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/moderation/comments/pending", target, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "promoted user reaches the queue")

	c := h.approvedComment(h.fx.Author, "visible until banned")
	resp = h.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/ban", h.fx.Author.ID), h.fx.Admin, fiber.Map{"banned": true}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var nodes []*threadNode
	h.do(http.MethodGet, h.commentsPath(), nil, nil, &nodes)
	for _, n := range nodes {
		assert.NotEqual(t, c.ID, n.ID)
	}
}

func TestAuditEventsArePersisted(t *testing.T) {
	h := newHarness(t)
	c := h.approvedComment(h.fx.Author, "audited")

	resp := h.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", c.ID), h.fx.Moderator, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	h.srv.auditor.Wait()

	var logs []models.ActivityLog
	require.NoError(t, h.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "comment.delete", logs[0].Action)
}
