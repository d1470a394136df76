// Command audittail streams live audit events from Redis to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"modhub/internal/cache"
	"modhub/internal/config"
	"modhub/internal/notifications"
	"modhub/internal/service"
)

func main() {
	categories := flag.String("categories", "", "Comma-separated categories to follow, e.g. comment,vote (default all)")
	raw := flag.Bool("raw", false, "Print raw JSON payloads")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)
	if rdb == nil {
		log.Fatal("audittail requires a reachable Redis (REDIS_URL)")
	}
	defer func() { _ = rdb.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := notifications.NewNotifier(rdb)
	err = n.StartAuditSubscriber(ctx, splitCategories(*categories), func(channel, payload string) {
		if *raw {
			fmt.Println(payload)
			return
		}
		fmt.Println(formatEvent(channel, payload))
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	log.Println("Listening for audit events, Ctrl+C to stop")
	<-ctx.Done()
}

func splitCategories(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func formatEvent(channel, payload string) string {
	var ev service.AuditEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Sprintf("%s %s", channel, payload)
	}
	actor := "system"
	if ev.ActorID != 0 {
		actor = fmt.Sprintf("user:%d", ev.ActorID)
	}
	return fmt.Sprintf("%s %-24s %-12s %s:%d",
		ev.OccurredAt.Format("15:04:05"), ev.Action, actor, ev.TargetType, ev.TargetID)
}
