// Package main provides operator utilities for the modhub comment engine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"modhub/internal/cache"
	"modhub/internal/config"
	"modhub/internal/database"
	"modhub/internal/notifications"
	"modhub/internal/repository"
	"modhub/internal/service"

	"gopkg.in/yaml.v3"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin role <user_id> <user|moderator|admin|supervisor>  - Change a user's role")
	fmt.Println("  admin ban <user_id>                                     - Ban a user")
	fmt.Println("  admin unban <user_id>                                   - Lift a ban")
	fmt.Println("  admin import-words <file.yml>                           - Upsert blocklist words from YAML")
	fmt.Println("  admin list-words                                        - Print the blocklist")
	fmt.Println("  admin moderation <on|off|status>                        - Show or switch pre-moderation")
	os.Exit(1)
}

// wordFile is the blocklist import format:
//
//	words:
//	  - word: scam
//	    severity: medium
type wordFile struct {
	Words []service.WordEntry `yaml:"words"`
}

func parseWordFile(data []byte) ([]service.WordEntry, error) {
	var f wordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse word file: %w", err)
	}
	if len(f.Words) == 0 {
		return nil, fmt.Errorf("word file contains no words")
	}
	return f.Words, nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	rdb := cache.InitRedis(cfg.RedisURL)

	auditor := service.NewAsyncAuditor(repository.NewActivityLogRepository(db), notifications.NewNotifier(rdb))
	defer auditor.Wait()

	words := repository.NewForbiddenWordRepository(db)
	clock := database.NewStoreClock(db)
	admin := service.NewAdminService(
		words,
		repository.NewUserRepository(db),
		service.NewContentFilter(words, rdb, cfg.BlocklistCacheTTL()),
		service.NewTimeoutEnforcer(repository.NewTimeoutRepository(db), clock,
			service.NewTimeoutPolicy(cfg.TimeoutLowMinutes, cfg.TimeoutMediumMinutes, cfg.TimeoutHighMinutes)),
		service.NewModerationSettings(repository.NewSettingRepository(db), rdb),
		auditor,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, admin, os.Args[1:]); err != nil {
		auditor.Wait()
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, admin *service.AdminService, args []string) error {
	actor := service.SystemActor

	switch args[0] {
	case "role":
		if len(args) < 3 {
			usage()
		}
		id, err := parseUserID(args[1])
		if err != nil {
			return err
		}
		if err := admin.SetRole(ctx, actor, id, args[2]); err != nil {
			return err
		}
		fmt.Printf("User %d is now %s\n", id, args[2])

	case "ban", "unban":
		if len(args) < 2 {
			usage()
		}
		id, err := parseUserID(args[1])
		if err != nil {
			return err
		}
		banned := args[0] == "ban"
		if err := admin.SetBanned(ctx, actor, id, banned); err != nil {
			return err
		}
		fmt.Printf("User %d banned=%v\n", id, banned)

	case "import-words":
		if len(args) < 2 {
			usage()
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		entries, err := parseWordFile(data)
		if err != nil {
			return err
		}
		saved, err := admin.UpsertWords(ctx, actor, entries)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d forbidden words\n", len(saved))

	case "list-words":
		list, err := admin.ListWords(ctx, actor)
		if err != nil {
			return err
		}
		for _, w := range list {
			fmt.Printf("%-24s %s\n", w.Word, w.Severity)
		}

	case "moderation":
		if len(args) < 2 {
			usage()
		}
		switch args[1] {
		case "on", "off":
			if err := admin.SetModerationEnabled(ctx, actor, args[1] == "on"); err != nil {
				return err
			}
		case "status":
		default:
			usage()
		}
		enabled, err := admin.ModerationEnabled(ctx, actor)
		if err != nil {
			return err
		}
		fmt.Printf("Pre-moderation enabled: %v\n", enabled)

	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		usage()
	}
	return nil
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
