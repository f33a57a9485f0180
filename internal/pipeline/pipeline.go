// Package pipeline drives one video job through probing, thumbnail
// generation, transcoding, asset upload and finalization.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/ffmpeg"
	"github.com/Yashaswini-V21/HuddleUp/internal/model"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
	"github.com/Yashaswini-V21/HuddleUp/internal/storage"
)

// Progress milestones. Transcoding advances in equal shares of the
// 40-point budget between thumbnailsDone and transcodeCap.
const (
	progressClaimed    = 10
	progressProbed     = 20
	progressThumbnails = 50
	progressTranscoded = 90
	transcodeBudget    = 40
)

// Orchestrator executes the per-job state machine. It owns no
// persistent state itself: everything durable lives on the video
// record, everything transient in the job's scratch directory.
type Orchestrator struct {
	media  MediaProcessor
	assets AssetStore
	videos VideoStore
	log    *logrus.Logger

	scratchDir     string
	thumbnailCount int
}

func NewOrchestrator(media MediaProcessor, assets AssetStore, videos VideoStore, log *logrus.Logger, scratchDir string, thumbnailCount int) *Orchestrator {
	if thumbnailCount <= 0 {
		thumbnailCount = 5
	}
	return &Orchestrator{
		media:          media,
		assets:         assets,
		videos:         videos,
		log:            log,
		scratchDir:     scratchDir,
		thumbnailCount: thumbnailCount,
	}
}

// jobRun tracks one attempt. Progress reporting is monotonic within the
// attempt; a retry starts a fresh jobRun and reports from 10 again.
type jobRun struct {
	o        *Orchestrator
	job      *queue.Job
	tempDir  string
	progress int
	log      *logrus.Entry
}

// Process runs the full pipeline for a claimed job. On error the
// scratch directory and input file are left in place so a retry (or an
// operator) can pick up from the raw input.
func (o *Orchestrator) Process(ctx context.Context, job *queue.Job) error {
	run := &jobRun{
		o:       o,
		job:     job,
		tempDir: filepath.Join(o.scratchDir, fmt.Sprintf("video-%s", job.Payload.VideoID)),
		log: o.log.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"video_id": job.Payload.VideoID,
			"attempt":  job.Attempt,
		}),
	}
	return run.execute(ctx)
}

func (r *jobRun) execute(ctx context.Context) error {
	videoID := r.job.Payload.VideoID
	inputPath := r.job.Payload.InputPath

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return &StepError{Step: StepProbing, Err: fmt.Errorf("create scratch dir: %w", err)}
	}
	r.report(ctx, progressClaimed)

	// Probe. Any failure here means the input itself is unusable, so
	// the job is failed without retries.
	r.log.Info("Probing source video")
	meta, err := r.o.media.Probe(ctx, inputPath)
	if err != nil {
		return &StepError{Step: StepProbing, Err: &MalformedInputError{Cause: err}}
	}
	if err := r.o.videos.SaveMetadata(ctx, videoID, model.Metadata{
		Duration:   meta.Duration,
		Resolution: meta.Resolution(),
		FileSize:   meta.FileSize,
		Codec:      meta.Codec,
	}); err != nil {
		return &StepError{Step: StepProbing, Err: err}
	}
	r.report(ctx, progressProbed)

	// Thumbnails: capture, upload, drop the local copy as soon as the
	// upload lands to bound scratch usage.
	r.log.WithField("count", r.o.thumbnailCount).Info("Generating thumbnails")
	thumbPaths, err := r.o.media.GenerateThumbnails(ctx, inputPath, r.tempDir, r.o.thumbnailCount)
	if err != nil {
		return &StepError{Step: StepThumbnails, Err: err}
	}

	thumbnailURLs := make([]string, 0, len(thumbPaths))
	for _, thumbPath := range thumbPaths {
		asset, err := r.o.assets.Upload(ctx, thumbPath, storage.KindThumbnail)
		if err != nil {
			return &StepError{Step: StepUpload, Err: err}
		}
		thumbnailURLs = append(thumbnailURLs, asset.URL)
		r.removeLocal(thumbPath)
	}
	if err := r.o.videos.SaveThumbnails(ctx, videoID, thumbnailURLs); err != nil {
		return &StepError{Step: StepThumbnails, Err: err}
	}
	r.report(ctx, progressThumbnails)

	// Renditions, lowest quality first, each transcoded then uploaded
	// then removed locally. Progress advances by an equal share of the
	// transcoding budget per rendition.
	ladder := ffmpeg.RenditionLadder(meta.Height)
	versions := model.RenditionMap{}
	current := float64(progressThumbnails)
	share := 0.0
	if len(ladder) > 0 {
		share = float64(transcodeBudget) / float64(len(ladder))
	}

	for _, quality := range ladder {
		r.log.WithField("quality", quality).Info("Transcoding rendition")
		outputPath := filepath.Join(r.tempDir, fmt.Sprintf("%s-%s.mp4", uuid.NewString(), quality))
		if err := r.o.media.Transcode(ctx, inputPath, outputPath, quality); err != nil {
			return &StepError{Step: StepTranscode, Err: err}
		}

		asset, err := r.o.assets.Upload(ctx, outputPath, storage.KindVideo)
		if err != nil {
			return &StepError{Step: StepUpload, Err: err}
		}
		versions[quality] = asset.URL
		r.removeLocal(outputPath)

		current += share
		p := int(current)
		if p > progressTranscoded {
			p = progressTranscoded
		}
		r.report(ctx, p)
	}

	// The untouched original is always part of the rendition set and
	// is the canonical CDN reference.
	r.log.Info("Uploading original")
	original, err := r.o.assets.Upload(ctx, inputPath, storage.KindVideo)
	if err != nil {
		return &StepError{Step: StepUpload, Err: err}
	}
	versions["original"] = original.URL

	// Finalize. Scratch is deleted only after this persist succeeds;
	// if it fails, the retry still has the raw input.
	if err := r.o.videos.Finalize(ctx, videoID, versions, thumbnailURLs, original.URL); err != nil {
		return &StepError{Step: StepFinalize, Err: err}
	}

	r.removeLocal(inputPath)
	if err := os.RemoveAll(r.tempDir); err != nil {
		r.log.WithError(err).Warn("Failed to remove scratch directory")
	}

	r.log.WithField("renditions", len(versions)).Info("Video processing completed")
	return nil
}

// report persists progress, clamped to be non-decreasing within the
// attempt. Persistence failures here are logged and swallowed: progress
// is advisory, and the next milestone will retry the write.
func (r *jobRun) report(ctx context.Context, progress int) {
	if progress <= r.progress {
		return
	}
	r.progress = progress
	if err := r.o.videos.UpdateProgress(ctx, r.job.Payload.VideoID, progress); err != nil {
		r.log.WithError(err).WithField("progress", progress).Warn("Failed to persist progress")
	}
}

func (r *jobRun) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.WithError(err).WithField("path", path).Warn("Failed to remove local file")
	}
}
