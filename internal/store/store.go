// Package store persists video records and the pipeline's processing
// state in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Yashaswini-V21/HuddleUp/internal/model"
)

type VideoStore struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the videos table.
func Open(dsn string) (*VideoStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&model.Video{}); err != nil {
		return nil, fmt.Errorf("migrate videos: %w", err)
	}
	return &VideoStore{db: db}, nil
}

// New wraps an existing gorm handle. Used by tests.
func New(db *gorm.DB) *VideoStore {
	return &VideoStore{db: db}
}

func (s *VideoStore) Create(ctx context.Context, v *model.Video) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *VideoStore) Get(ctx context.Context, id string) (*model.Video, error) {
	var v model.Video
	err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns videos newest first, optionally filtered by uploader.
func (s *VideoStore) List(ctx context.Context, postedBy string) ([]model.Video, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if postedBy != "" {
		q = q.Where("posted_by = ?", postedBy)
	}
	var videos []model.Video
	if err := q.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (s *VideoStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.Video{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *VideoStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.Video{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update video %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetJob links the record to its queue job and moves it to processing.
func (s *VideoStore) SetJob(ctx context.Context, id, jobID string) error {
	return s.update(ctx, id, map[string]interface{}{
		"job_id":            jobID,
		"processing_status": model.ProcessingActive,
	})
}

// UpdateProgress records fractional pipeline progress. Status is forced
// to processing so a retried attempt leaves any stale failed marker.
func (s *VideoStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	return s.update(ctx, id, map[string]interface{}{
		"processing_status":   model.ProcessingActive,
		"processing_progress": progress,
		"processing_error":    "",
	})
}

func (s *VideoStore) SaveMetadata(ctx context.Context, id string, m model.Metadata) error {
	return s.update(ctx, id, map[string]interface{}{
		"duration":   m.Duration,
		"resolution": m.Resolution,
		"file_size":  m.FileSize,
		"codec":      m.Codec,
	})
}

func (s *VideoStore) SaveThumbnails(ctx context.Context, id string, urls []string) error {
	return s.update(ctx, id, map[string]interface{}{
		"thumbnails": model.URLList(urls),
	})
}

// Finalize persists the completed rendition set. This is the single
// write that makes the record terminal-success; scratch cleanup only
// happens after it returns nil.
func (s *VideoStore) Finalize(ctx context.Context, id string, versions model.RenditionMap, thumbnails []string, cdnURL string) error {
	return s.update(ctx, id, map[string]interface{}{
		"video_versions":      versions,
		"thumbnails":          model.URLList(thumbnails),
		"video_url":           model.PlaybackURL(versions),
		"cdn_url":             cdnURL,
		"processing_status":   model.ProcessingCompleted,
		"processing_progress": 100,
		"processing_error":    "",
	})
}

// MarkFailed records the terminal failure. Progress is left at its last
// reported value so operators can see how far the job got.
func (s *VideoStore) MarkFailed(ctx context.Context, id, message string) error {
	return s.update(ctx, id, map[string]interface{}{
		"processing_status": model.ProcessingFailed,
		"processing_error":  message,
	})
}
