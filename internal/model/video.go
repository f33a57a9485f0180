package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingActive    ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// RenditionMap maps a quality label ("original", "1080p", "720p",
// "480p", "360p") to a durable asset URL. Stored as jsonb.
type RenditionMap map[string]string

func (m RenditionMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *RenditionMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, m)
}

// URLList is an ordered list of asset URLs, stored as jsonb.
type URLList []string

func (l URLList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *URLList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// Metadata holds the probed source characteristics, written once after
// probing and immutable afterwards.
type Metadata struct {
	Duration   float64 `gorm:"column:duration" json:"duration"`
	Resolution string  `gorm:"column:resolution" json:"resolution"`
	FileSize   int64   `gorm:"column:file_size" json:"fileSize"`
	Codec      string  `gorm:"column:codec" json:"codec"`
}

// Video is the persistent video record. The pipeline owns the
// processing fields, the rendition set and the metadata; everything
// else is written by the upload handler.
type Video struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`

	VideoURL      string       `json:"videoUrl"`
	VideoVersions RenditionMap `gorm:"type:jsonb" json:"videoVersions,omitempty"`
	Thumbnails    URLList      `gorm:"type:jsonb" json:"thumbnails,omitempty"`
	CdnURL        string       `json:"cdnUrl,omitempty"`

	Metadata Metadata `gorm:"embedded" json:"metadata"`

	ProcessingStatus   ProcessingStatus `gorm:"default:pending" json:"processingStatus"`
	ProcessingProgress int              `json:"processingProgress"`
	ProcessingError    string           `json:"processingError,omitempty"`
	JobID              string           `json:"jobId,omitempty"`

	PostedBy  string    `gorm:"index" json:"postedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Video) TableName() string {
	return "videos"
}

var ErrNotFound = errors.New("video not found")

// playbackPreference mirrors the serving fallback order: the 720p
// rendition is the default playback quality, then 480p, then the
// untouched original.
var playbackPreference = []string{"720p", "480p", "original"}

// PlaybackURL picks the rendition a player should default to.
func PlaybackURL(versions RenditionMap) string {
	for _, label := range playbackPreference {
		if url, ok := versions[label]; ok && url != "" {
			return url
		}
	}
	return ""
}
