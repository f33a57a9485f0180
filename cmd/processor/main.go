package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/config"
	"github.com/Yashaswini-V21/HuddleUp/internal/ffmpeg"
	"github.com/Yashaswini-V21/HuddleUp/internal/jobs"
	"github.com/Yashaswini-V21/HuddleUp/internal/pipeline"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
	"github.com/Yashaswini-V21/HuddleUp/internal/storage"
	"github.com/Yashaswini-V21/HuddleUp/internal/store"
	"github.com/Yashaswini-V21/HuddleUp/internal/worker"
)

func main() {
	cfg := config.Load()
	config.InitLogger()
	log := config.Log

	log.Info("Starting Video Processor...")

	// Claiming is cancelled first on shutdown; execution keeps running
	// until the dispatcher drains so in-flight ffmpeg work is not killed
	// mid-job.
	execCtx, execCancel := context.WithCancel(context.Background())
	defer execCancel()
	claimCtx, claimCancel := context.WithCancel(execCtx)
	defer claimCancel()

	videos, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open video store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(execCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	assets, err := storage.NewClient(execCtx, storage.Options{
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

	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		log.Fatalf("Failed to create scratch directory: %v", err)
	}

	media := ffmpeg.NewClient(cfg.FFmpegPath, cfg.FFprobePath, cfg.StepTimeout)
	jobQueue := queue.New(rdb, log, queue.Options{
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	orchestrator := pipeline.NewOrchestrator(media, assets, videos, log, cfg.ScratchDir, cfg.ThumbnailCount)

	dispatcher := worker.NewDispatcher(cfg.WorkerCount, cfg.JobQueueSize, log)
	dispatcher.Run(execCtx)

	go jobQueue.RunMaintenance(claimCtx, time.Second)
	go consume(claimCtx, jobQueue, dispatcher, orchestrator, videos, cfg.PollTimeout, log)

	// Graceful shutdown: stop claiming, let in-flight jobs finish.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down Video Processor...")
	claimCancel()
	dispatcher.Stop()
	execCancel()
	_ = rdb.Close()
	log.Info("Video Processor shut down gracefully")
}

// consume claims jobs from the durable queue and hands them to the
// worker pool. A poll timeout bounds each blocking claim so shutdown is
// responsive.
func consume(ctx context.Context, q *queue.Queue, d *worker.Dispatcher, orchestrator *pipeline.Orchestrator, videos *store.VideoStore, pollTimeout time.Duration, log *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.Claim(ctx, pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.WithError(err).Error("Failed to claim job from queue")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"video_id": job.Payload.VideoID,
			"attempt":  job.Attempt,
		}).Info("Claimed processing job")

		processJob := jobs.NewProcessVideoJob(job, orchestrator, q, videos, log)
		for !d.Submit(processJob) {
			// Pool backlog is full; wait for a worker to drain it.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}
