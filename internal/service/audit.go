package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"modhub/internal/middleware"
	"modhub/internal/models"
	"modhub/internal/observability"
	"modhub/internal/repository"

	"github.com/google/uuid"
)

// Audit actions.
const (
	AuditCommentCreate     = "comment.create"
	AuditCommentReply      = "comment.reply"
	AuditCommentApprove    = "comment.approve"
	AuditCommentReject     = "comment.reject"
	AuditCommentDelete     = "comment.delete"
	AuditCommentVote       = "comment.vote"
	AuditUserTimeout       = "user.timeout"
	AuditMaliciousContent  = "security.malicious_content"
	AuditBlocklistChange   = "admin.blocklist"
	AuditModerationSetting = "admin.moderation_setting"
)

// AuditEvent is one fire-and-forget record of who did what to which target.
type AuditEvent struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	ActorID    uint           `json:"actor_id,omitempty"`
	ActorRole  string         `json:"actor_role,omitempty"`
	TargetType string         `json:"target_type"`
	TargetID   uint           `json:"target_id"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewAuditEvent fills the actor fields and a fresh id.
func NewAuditEvent(action string, actor Actor, targetType string, targetID uint, metadata map[string]any) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		Action:     action,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		TargetType: targetType,
		TargetID:   targetID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
}

// Auditor receives audit events. Record must not block on delivery and
// must never surface delivery failures to the caller.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent)
}

// AuditPublisher fans encoded events out to live listeners.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, action string, payload []byte) error
}

// NopAuditor discards events.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, AuditEvent) {}

// AsyncAuditor persists events to activity_logs and publishes them, each in
// its own goroutine detached from the request.
type AsyncAuditor struct {
	logs      repository.ActivityLogRepository
	publisher AuditPublisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewAsyncAuditor creates an AsyncAuditor. Either sink may be nil.
func NewAsyncAuditor(logs repository.ActivityLogRepository, publisher AuditPublisher) *AsyncAuditor {
	return &AsyncAuditor{logs: logs, publisher: publisher, timeout: 5 * time.Second}
}

func (a *AsyncAuditor) Record(ctx context.Context, event AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	base := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				observability.AuditFailures.WithLabelValues("panic").Inc()
				middleware.Logger.Error("panic in audit delivery",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		a.deliver(ctx, event)
	}()
}

// Wait blocks until every in-flight event has been delivered or dropped.
func (a *AsyncAuditor) Wait() {
	a.wg.Wait()
}

func (a *AsyncAuditor) deliver(ctx context.Context, event AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		observability.AuditFailures.WithLabelValues("encode").Inc()
		middleware.Logger.ErrorContext(ctx, "audit event encode failed", slog.String("error", err.Error()))
		return
	}

	if a.logs != nil {
		if err := a.logs.Create(ctx, toActivityLog(event)); err != nil {
			observability.AuditFailures.WithLabelValues("database").Inc()
			middleware.Logger.WarnContext(ctx, "audit event not persisted",
				slog.String("action", event.Action),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.publisher != nil {
		if err := a.publisher.PublishAuditEvent(ctx, event.Action, payload); err != nil {
			observability.AuditFailures.WithLabelValues("redis").Inc()
			middleware.Logger.WarnContext(ctx, "audit event not published",
				slog.String("action", event.Action),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func toActivityLog(event AuditEvent) *models.ActivityLog {
	entry := &models.ActivityLog{
		EventID:    event.ID,
		ActorRole:  event.ActorRole,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		CreatedAt:  event.OccurredAt,
	}
	if event.ActorID != 0 {
		actorID := event.ActorID
		entry.ActorID = &actorID
	}
	if len(event.Metadata) > 0 {
		if b, err := json.Marshal(event.Metadata); err == nil {
			entry.Metadata = string(b)
		}
	}
	return entry
}
