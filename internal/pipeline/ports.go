package pipeline

import (
	"context"

	"github.com/Yashaswini-V21/HuddleUp/internal/ffmpeg"
	"github.com/Yashaswini-V21/HuddleUp/internal/model"
	"github.com/Yashaswini-V21/HuddleUp/internal/storage"
)

// MediaProcessor is the external tooling contract: probing, thumbnail
// capture and transcoding. *ffmpeg.Client is the production
// implementation.
type MediaProcessor interface {
	Probe(ctx context.Context, inputPath string) (ffmpeg.Metadata, error)
	GenerateThumbnails(ctx context.Context, inputPath, outDir string, count int) ([]string, error)
	Transcode(ctx context.Context, inputPath, outputPath, quality string) error
}

// AssetStore pushes derived assets to durable remote storage.
// *storage.Client is the production implementation.
type AssetStore interface {
	Upload(ctx context.Context, localPath string, kind storage.Kind) (storage.Asset, error)
	Delete(ctx context.Context, remoteID string) error
}

// VideoStore is the slice of video-record persistence the orchestrator
// writes through. *store.VideoStore is the production implementation.
type VideoStore interface {
	SaveMetadata(ctx context.Context, id string, m model.Metadata) error
	SaveThumbnails(ctx context.Context, id string, urls []string) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	Finalize(ctx context.Context, id string, versions model.RenditionMap, thumbnails []string, cdnURL string) error
}
