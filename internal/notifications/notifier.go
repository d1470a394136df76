// Package notifications fans audit events out over Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"modhub/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const auditChannelPrefix = "audit:"

// AuditChannel returns the channel an event category is published on,
// e.g. "audit:comment" for comment.* events.
func AuditChannel(category string) string {
	return auditChannelPrefix + category
}

// AuditPattern matches every audit channel.
const AuditPattern = auditChannelPrefix + "*"

// CategoryOf derives the channel category from an action such as "comment.approve".
func CategoryOf(action string) string {
	category, _, _ := strings.Cut(action, ".")
	if category == "" {
		return "misc"
	}
	return category
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishAuditEvent publishes an encoded audit event on its category channel.
// With no Redis configured this is a no-op.
func (n *Notifier) PublishAuditEvent(ctx context.Context, action string, payload []byte) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if err := n.rdb.Publish(ctx, AuditChannel(CategoryOf(action)), payload).Err(); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// StartAuditSubscriber subscribes to the given categories (all when empty)
// and calls onMessage for each event until ctx is cancelled. It returns once
// the subscription is confirmed, so no event published afterwards is missed.
func (n *Notifier) StartAuditSubscriber(
	ctx context.Context, categories []string, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return fmt.Errorf("audit subscriber requires redis")
	}

	var sub *redis.PubSub
	if len(categories) == 0 {
		sub = n.rdb.PSubscribe(ctx, AuditPattern)
	} else {
		channels := make([]string, 0, len(categories))
		for _, c := range categories {
			channels = append(channels, AuditChannel(c))
		}
		sub = n.rdb.Subscribe(ctx, channels...)
	}

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe audit channels: %w", err)
	}

	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in audit subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
