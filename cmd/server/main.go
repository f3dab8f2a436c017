package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/auth"
	"github.com/coaltail/rhythmlink-backend/internal/cache"
	"github.com/coaltail/rhythmlink-backend/internal/config"
	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/handlers"
	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/coaltail/rhythmlink-backend/internal/metrics"
	"github.com/coaltail/rhythmlink-backend/internal/middleware"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"github.com/coaltail/rhythmlink-backend/internal/service"
	"github.com/coaltail/rhythmlink-backend/internal/storage"
	"github.com/coaltail/rhythmlink-backend/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config: load failed", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry: init failed", "error", err)
		os.Exit(1)
	}

	db, err := repository.InitDB(cfg.Database.DSN(), cfg.Telemetry.Enabled())
	if err != nil {
		slog.Error("database: connect failed", "error", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(ctx); err != nil {
		slog.Warn("cache: redis unavailable, running without cache", "addr", cfg.Redis.Addr, "error", err)
		_ = redisCache.Close()
		redisCache = nil
	} else {
		slog.Info("cache: redis connected", "addr", cfg.Redis.Addr)
	}
	threadCache := cache.NewThreadCache(redisCache)
	userCache := cache.NewUserCache(redisCache)

	// Image uploads answer 500 until storage is reachable.
	var blobs storage.BlobStore
	if s3Store, err := storage.NewS3Storage(cfg.S3); err != nil {
		slog.Warn("storage: S3 not configured", "error", err)
	} else if err := s3Store.EnsureBucket(ctx); err != nil {
		slog.Warn("storage: bucket check failed", "bucket", cfg.S3.Bucket, "error", err)
	} else {
		blobs = s3Store
		slog.Info("storage: S3 ready", "bucket", cfg.S3.Bucket)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled() {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Error("events: kafka publisher failed", "error", err)
			os.Exit(1)
		}
		publisher = kp
		slog.Info("events: publishing to kafka", "topic", cfg.Kafka.Topic)
	}

	m := metrics.New()
	signer := auth.NewTokenSigner(cfg.JWT.Secret, auth.DefaultTokenTTL)

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	requestRepo := repository.NewJoinRequestRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	readRepo := repository.NewReadStateRepository(db)

	authService := service.NewAuthService(userRepo, signer)
	userService := service.NewUserService(userRepo, signer, blobs, userCache)
	groupService := service.NewGroupService(groupRepo, requestRepo, userRepo, blobs, publisher, m)
	messageService := service.NewMessageService(threadRepo, messageRepo, readRepo, groupRepo, userRepo, threadCache, publisher, m)

	app := fiber.New(fiber.Config{
		AppName:      "RhythmLink Backend",
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler: httpx.ErrorHandler,
	})

	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, OPTIONS",
	}))
	app.Use(m.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "RhythmLink is running",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api", middleware.OriginAllowed(cfg.Server.AllowedOrigins))
	handlers.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		User:    handlers.NewUserHandler(userService),
		Group:   handlers.NewGroupHandler(groupService),
		Message: handlers.NewMessageHandler(messageService),
	}.Mount(api, middleware.AuthRequired(signer), handlers.RouteOptions{
		AuthLimit:       20,
		AuthLimitWindow: time.Minute,
	})

	go func() {
		<-ctx.Done()
		slog.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("server: shutdown failed", "error", err)
		}
	}()

	slog.Info("server: starting", "port", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		slog.Error("server: listen failed", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := publisher.Close(); err != nil {
		slog.Warn("events: close failed", "error", err)
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if err := shutdownTracing(closeCtx); err != nil {
		slog.Warn("telemetry: shutdown failed", "error", err)
	}
}
