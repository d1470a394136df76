// Package server contains the HTTP handlers for the comment moderation API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"modhub/internal/cache"
	"modhub/internal/config"
	"modhub/internal/database"
	"modhub/internal/featureflags"
	"modhub/internal/middleware"
	"modhub/internal/notifications"
	"modhub/internal/repository"
	"modhub/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	auditor        *service.AsyncAuditor
	featureFlags   *featureflags.Manager
	commentService *service.CommentService
	voteService    *service.VoteService
	adminService   *service.AdminService
}

// NewServer connects to the database and Redis and wires the engine.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client leaves caching, audit fan-out and the vote limiter disabled.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The engine reads time from the database so every instance agrees on
// throttle windows and timeout expiry.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	return newServer(cfg, db, redisClient, database.NewStoreClock(db))
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, clock service.Clock) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	wordRepo := repository.NewForbiddenWordRepository(db)

	notifier := notifications.NewNotifier(redisClient)
	auditor := service.NewAsyncAuditor(repository.NewActivityLogRepository(db), notifier)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	filter := service.NewContentFilter(wordRepo, redisClient, cfg.BlocklistCacheTTL())
	timeouts := service.NewTimeoutEnforcer(
		repository.NewTimeoutRepository(db),
		clock,
		service.NewTimeoutPolicy(cfg.TimeoutLowMinutes, cfg.TimeoutMediumMinutes, cfg.TimeoutHighMinutes),
	)
	settings := service.NewModerationSettings(repository.NewSettingRepository(db), redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("modhub-api"),
		userRepo:       userRepo,
		notifier:       notifier,
		auditor:        auditor,
		featureFlags:   flags,
	}
	s.commentService = service.NewCommentService(service.CommentDeps{
		Comments:         commentRepo,
		Mods:             repository.NewModRepository(db),
		Users:            userRepo,
		Votes:            voteRepo,
		Filter:           filter,
		Throttle:         service.NewAbuseThrottle(commentRepo, clock, cfg.CommentRateLimit, cfg.CommentRateWindow()),
		Timeouts:         timeouts,
		Settings:         settings,
		Auditor:          auditor,
		Flags:            flags,
		Clock:            clock,
		MaxContentLength: cfg.CommentMaxLength,
	})
	s.voteService = service.NewVoteService(voteRepo, userRepo, auditor)
	s.adminService = service.NewAdminService(wordRepo, userRepo, filter, timeouts, settings, auditor)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so trace ids reach the logs.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Coarse per-IP ceiling; the vote route has its own Redis-backed limit
	// and comment throttling lives in the engine.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
				"code":  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Listing is public; a valid bearer token makes the caller the viewer.
	api.Get("/mods/:modId/comments", middleware.OptionalAuth, s.ListComments)

	protected := api.Group("", middleware.AuthRequired)
	protected.Post("/mods/:modId/comments", s.CreateComment)

	comments := protected.Group("/comments")
	comments.Post("/:id/replies", s.CreateReply)
	comments.Get("/:id/vote", s.GetCommentVote)
	comments.Post("/:id/vote", middleware.RateLimit(
		s.redis, s.config.VoteRateLimitPerMinute, time.Minute, "vote"), s.VoteComment)
	comments.Delete("/:id", s.DeleteComment)

	moderation := protected.Group("/moderation", s.ModeratorRequired())
	moderation.Get("/comments/pending", s.ListPendingComments)
	moderation.Post("/comments/:id/approve", s.ApproveComment)
	moderation.Post("/comments/:id/reject", s.RejectComment)
	moderation.Get("/users/:id/timeouts", s.GetTimeoutHistory)
	moderation.Post("/users/:id/timeouts", s.CreateTimeout)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/forbidden-words", s.ListForbiddenWords)
	admin.Post("/forbidden-words", s.UpsertForbiddenWords)
	admin.Delete("/forbidden-words/:word", s.DeleteForbiddenWord)
	admin.Get("/settings/moderation", s.GetModerationSetting)
	admin.Put("/settings/moderation", s.UpdateModerationSetting)
	admin.Put("/users/:id/role", s.UpdateUserRole)
	admin.Put("/users/:id/ban", s.UpdateUserBan)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports database and Redis health. Running without Redis is
// a supported mode, so an unconfigured client does not fail the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "modhub",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return respondError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, flushes pending audit events and closes
// the store connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	flushed := make(chan struct{})
	go func() {
		s.auditor.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		middleware.Logger.Warn("audit events still pending at shutdown")
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
