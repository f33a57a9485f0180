package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Yashaswini-V21/HuddleUp/internal/model"
	"github.com/Yashaswini-V21/HuddleUp/utils"
)

// allowedExtensions is the upload whitelist; anything else is rejected
// before a byte hits scratch storage.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// UploadRequest defines the multipart form fields accompanying the file.
type UploadRequest struct {
	Title       string `form:"title" validate:"required,max=100"`
	Description string `form:"description" validate:"max=5000"`
	Category    string `form:"category" validate:"required,max=50"`
}

// UploadVideo accepts a raw video, persists the record in pending
// state, enqueues the processing job and returns immediately. The
// caller polls the status endpoint for progress.
func (h *ApplicationHandler) UploadVideo(c *fiber.Ctx) error {
	submitterID := strings.TrimSpace(c.Get("X-User-ID"))
	if submitterID == "" {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Missing X-User-ID header")
	}

	payload := UploadRequest{
		Title:       utils.SanitizeInput(c.FormValue("title")),
		Description: utils.SanitizeInput(c.FormValue("description")),
		Category:    utils.SanitizeInput(c.FormValue("category")),
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest,
			fmt.Sprintf("Validation failed: %s", strings.Join(utils.FormatValidationErrors(err), "; ")))
	}

	file, err := c.FormFile("video")
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "No video file uploaded")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Unsupported file type %q", ext))
	}
	if h.MaxUploadSize > 0 && file.Size > h.MaxUploadSize {
		return utils.RespondWithError(c, fiber.StatusRequestEntityTooLarge, "File exceeds maximum upload size")
	}

	videoID := uuid.NewString()
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		h.Logger.WithError(err).Error("Failed to create upload directory")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error storing upload")
	}
	inputPath := filepath.Join(h.UploadDir, videoID+ext)
	if err := c.SaveFile(file, inputPath); err != nil {
		h.Logger.WithError(err).Error("Failed to save uploaded file")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error storing upload")
	}

	video := &model.Video{
		ID:               videoID,
		Title:            payload.Title,
		Description:      payload.Description,
		Category:         payload.Category,
		VideoURL:         "/uploads/" + filepath.Base(inputPath),
		ProcessingStatus: model.ProcessingPending,
		PostedBy:         submitterID,
	}
	if err := h.Videos.Create(c.Context(), video); err != nil {
		h.Logger.WithError(err).Error("Failed to create video record")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error creating video record")
	}

	jobID, err := h.Queue.Enqueue(c.Context(), videoID, inputPath, submitterID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to enqueue processing job")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error scheduling video processing")
	}

	if err := h.Videos.SetJob(c.Context(), videoID, jobID); err != nil {
		h.Logger.WithError(err).Error("Failed to link job to video record")
	}
	video.JobID = jobID
	video.ProcessingStatus = model.ProcessingActive

	h.Logger.WithFields(map[string]interface{}{
		"video_id": videoID,
		"job_id":   jobID,
		"size":     file.Size,
	}).Info("Video uploaded and processing started")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"video": video,
			"jobId": jobID,
		},
	})
}

// ListVideos returns videos newest first, optionally filtered by uploader.
func (h *ApplicationHandler) ListVideos(c *fiber.Ctx) error {
	videos, err := h.Videos.List(c.Context(), c.Query("postedBy"))
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list videos")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error fetching videos")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, videos)
}

// GetVideo returns one video record.
func (h *ApplicationHandler) GetVideo(c *fiber.Ctx) error {
	video, err := h.Videos.Get(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch video")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error fetching video")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, video)
}

// GetVideoStatus exposes the persisted processing state for polling.
func (h *ApplicationHandler) GetVideoStatus(c *fiber.Ctx) error {
	video, err := h.Videos.Get(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch video status")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error fetching video status")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"status":   video.ProcessingStatus,
		"progress": video.ProcessingProgress,
		"error":    video.ProcessingError,
		"jobId":    video.JobID,
	})
}

// DeleteVideo removes a video record. Remote assets are deleted
// best-effort in the background; the delete is idempotent so repeated
// cleanup attempts are harmless.
func (h *ApplicationHandler) DeleteVideo(c *fiber.Ctx) error {
	submitterID := strings.TrimSpace(c.Get("X-User-ID"))
	if submitterID == "" {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Missing X-User-ID header")
	}

	video, err := h.Videos.Get(c.Context(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch video for deletion")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error deleting video")
	}
	if video.PostedBy != submitterID {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Not allowed to delete")
	}

	if err := h.Videos.Delete(c.Context(), video.ID); err != nil {
		h.Logger.WithError(err).Error("Failed to delete video record")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error deleting video")
	}

	go h.cleanupRemoteAssets(video)

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"message": "Video deleted"})
}

// cleanupRemoteAssets deletes the video's durable assets. Failures are
// logged and never surfaced; remote cleanup is a non-critical side
// channel.
func (h *ApplicationHandler) cleanupRemoteAssets(video *model.Video) {
	if h.Assets == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	urls := make([]string, 0, len(video.VideoVersions)+len(video.Thumbnails))
	for _, u := range video.VideoVersions {
		urls = append(urls, u)
	}
	urls = append(urls, video.Thumbnails...)

	for _, assetURL := range urls {
		key := h.Assets.KeyFromURL(assetURL)
		if key == "" {
			continue
		}
		if err := h.Assets.Delete(ctx, key); err != nil {
			h.Logger.WithError(err).WithField("remote_id", key).Warn("Failed to delete remote asset")
		}
	}
}
