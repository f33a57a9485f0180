package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"

	"github.com/Yashaswini-V21/HuddleUp/handlers"
	"github.com/Yashaswini-V21/HuddleUp/internal/config"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
	"github.com/Yashaswini-V21/HuddleUp/internal/storage"
	"github.com/Yashaswini-V21/HuddleUp/internal/store"
	"github.com/Yashaswini-V21/HuddleUp/middleware"
)

func main() {
	cfg := config.Load()
	config.InitLogger()
	log := config.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	videos, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open video store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	assets, err := storage.NewClient(ctx, storage.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
		PublicURL: cfg.MinioPublicURL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}

	jobQueue := queue.New(rdb, log, queue.Options{
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})

	uploadDir := filepath.Join(cfg.ScratchDir, "uploads")
	h := handlers.NewApplicationHandler(videos, jobQueue, assets, log, uploadDir, cfg.MaxUploadSize)

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadSize),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
	}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")
	apiV1.Post("/videos/upload", h.UploadVideo)
	apiV1.Get("/videos", h.ListVideos)
	apiV1.Get("/videos/:id", h.GetVideo)
	apiV1.Get("/videos/:id/status", h.GetVideoStatus)
	apiV1.Delete("/videos/:id", h.DeleteVideo)
	apiV1.Get("/jobs/:id", h.GetJobStatus)

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Starting API Gateway")
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Gateway stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API Gateway...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Gateway shutdown error")
	}
	_ = rdb.Close()
	log.Info("API Gateway shut down gracefully")
}
