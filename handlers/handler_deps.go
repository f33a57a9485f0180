package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/model"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
)

// VideoStore defines the persistence operations handlers need.
// *store.VideoStore is the production implementation.
type VideoStore interface {
	Create(ctx context.Context, v *model.Video) error
	Get(ctx context.Context, id string) (*model.Video, error)
	List(ctx context.Context, postedBy string) ([]model.Video, error)
	Delete(ctx context.Context, id string) error
	SetJob(ctx context.Context, id, jobID string) error
}

// JobQueue defines the queue operations handlers need.
type JobQueue interface {
	Enqueue(ctx context.Context, videoID, inputPath, submitterID string) (string, error)
	State(ctx context.Context, jobID string) (*queue.JobState, error)
}

// AssetCleaner deletes remote assets; used best-effort when a video is
// removed. Deletes are idempotent.
type AssetCleaner interface {
	Delete(ctx context.Context, remoteID string) error
	KeyFromURL(assetURL string) string
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Videos        VideoStore
	Queue         JobQueue
	Assets        AssetCleaner
	Logger        *logrus.Logger
	UploadDir     string
	MaxUploadSize int64
}

var validate = validator.New()

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(videos VideoStore, q JobQueue, assets AssetCleaner, logger *logrus.Logger, uploadDir string, maxUploadSize int64) *ApplicationHandler {
	return &ApplicationHandler{
		Videos:        videos,
		Queue:         q,
		Assets:        assets,
		Logger:        logger,
		UploadDir:     uploadDir,
		MaxUploadSize: maxUploadSize,
	}
}
