package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the gateway and processor binaries need.
// Values come from the environment, with defaults suitable for local
// development against docker-compose Postgres/Redis/MinIO.
type Config struct {
	HTTPAddr string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string
	// MinioPublicURL is the externally reachable base URL assets are
	// served from. Defaults to http(s)://<endpoint>.
	MinioPublicURL string

	ScratchDir    string
	MaxUploadSize int64

	FFmpegPath  string
	FFprobePath string
	StepTimeout time.Duration

	ThumbnailCount int
	MaxAttempts    int
	BackoffBase    time.Duration
	// VisibilityTimeout bounds how long a claimed job may sit in the
	// processing list before the reaper hands it to another worker.
	VisibilityTimeout time.Duration

	WorkerCount  int
	JobQueueSize int
	PollTimeout  time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr: valueOrDefault(os.Getenv("HTTP_ADDR"), ":8080"),

		DatabaseDSN: valueOrDefault(os.Getenv("DATABASE_DSN"),
			"host=localhost user=huddleup password=huddleup dbname=huddleup port=5432 sslmode=disable"),

		RedisAddr:     valueOrDefault(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt(os.Getenv("REDIS_DB"), 0),

		MinioEndpoint:  valueOrDefault(os.Getenv("MINIO_ENDPOINT"), "localhost:9000"),
		MinioAccessKey: valueOrDefault(os.Getenv("MINIO_ACCESS_KEY"), "minio"),
		MinioSecretKey: valueOrDefault(os.Getenv("MINIO_SECRET_KEY"), "minio123"),
		MinioUseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
		MinioBucket:    valueOrDefault(os.Getenv("MINIO_BUCKET"), "huddleup"),
		MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),

		ScratchDir:    valueOrDefault(os.Getenv("SCRATCH_DIR"), "./tmp"),
		MaxUploadSize: parseInt64(os.Getenv("MAX_UPLOAD_SIZE"), 500<<20),

		FFmpegPath:  valueOrDefault(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
		FFprobePath: valueOrDefault(os.Getenv("FFPROBE_PATH"), "ffprobe"),
		StepTimeout: parseDuration(os.Getenv("STEP_TIMEOUT"), 10*time.Minute),

		ThumbnailCount:    parseInt(os.Getenv("THUMBNAIL_COUNT"), 5),
		MaxAttempts:       parseInt(os.Getenv("MAX_ATTEMPTS"), 3),
		BackoffBase:       parseDuration(os.Getenv("BACKOFF_BASE"), 2*time.Second),
		VisibilityTimeout: parseDuration(os.Getenv("VISIBILITY_TIMEOUT"), 15*time.Minute),

		WorkerCount:  parseInt(os.Getenv("WORKER_COUNT"), 2),
		JobQueueSize: parseInt(os.Getenv("JOB_QUEUE_SIZE"), 100),
		PollTimeout:  parseDuration(os.Getenv("QUEUE_POLL_TIMEOUT"), 5*time.Second),
	}
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
