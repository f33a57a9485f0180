// Package ffmpeg wraps the ffmpeg and ffprobe binaries for probing,
// thumbnail capture and rendition transcoding.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrNoVideoStream is returned by Probe when the input has no decodable
// video stream. Callers treat it as malformed input, not a transient
// tool failure.
var ErrNoVideoStream = errors.New("no video stream found")

const (
	thumbnailWidth  = 640
	thumbnailHeight = 360
)

// Metadata describes a probed source file.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	Bitrate  int64
	Codec    string
	FileSize int64
}

// Resolution renders the conventional "WxH" form.
func (m Metadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Client invokes ffmpeg/ffprobe with a per-invocation timeout. A stuck
// tool process is killed when the deadline passes instead of blocking a
// worker forever.
type Client struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

func NewClient(ffmpegPath, ffprobePath string, timeout time.Duration) *Client {
	return &Client{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Timeout:     timeout,
	}
}

func (c *Client) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// ffprobeOutput is the subset of ffprobe's JSON we rely on.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe extracts duration, resolution, codec and size from the input.
func (c *Client) Probe(ctx context.Context, inputPath string) (Metadata, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe failed: %v\nStderr: %s", err, stderr.String())
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probed); err != nil {
		return Metadata{}, fmt.Errorf("error unmarshalling ffprobe output: %v\nOutput: %s", err, out.String())
	}

	meta := Metadata{}
	found := false
	for _, s := range probed.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			meta.Codec = s.CodecName
			found = true
			break
		}
	}
	if !found {
		return Metadata{}, fmt.Errorf("%w in %s", ErrNoVideoStream, inputPath)
	}

	if probed.Format.Duration == "" {
		return Metadata{}, fmt.Errorf("could not retrieve duration from ffprobe output for %s", inputPath)
	}
	duration, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("error parsing duration string '%s': %v", probed.Format.Duration, err)
	}
	meta.Duration = duration

	if probed.Format.Size != "" {
		meta.FileSize, _ = strconv.ParseInt(probed.Format.Size, 10, 64)
	}
	if probed.Format.BitRate != "" {
		meta.Bitrate, _ = strconv.ParseInt(probed.Format.BitRate, 10, 64)
	}

	return meta, nil
}

// Transcode produces a single rendition of the input using the preset
// for the given quality label. The output is self-contained mp4 with
// the moov atom up front so it streams without the original.
func (c *Client) Transcode(ctx context.Context, inputPath, outputPath, quality string) error {
	preset, ok := QualityPresets[quality]
	if !ok {
		return fmt.Errorf("unknown quality preset %q", quality)
	}

	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.FFmpegPath, transcodeArgs(inputPath, outputPath, preset)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcode to %s failed: %v\nStderr: %s", quality, err, stderr.String())
	}
	return nil
}

func transcodeArgs(inputPath, outputPath string, preset Preset) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-vf", fmt.Sprintf("scale=%d:%d", preset.Width, preset.Height),
		"-b:v", preset.Bitrate,
		"-b:a", "128k",
		"-preset", "fast",
		"-crf", "23",
		"-movflags", "+faststart",
		outputPath,
	}
}

// GenerateThumbnails captures count frames evenly spaced through the
// video's interior, writing 640x360 JPEGs into outDir. It returns the
// capture paths in temporal order.
func (c *Client) GenerateThumbnails(ctx context.Context, inputPath, outDir string, count int) ([]string, error) {
	meta, err := c.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}

	timestamps := ThumbnailTimestamps(meta.Duration, count)
	paths := make([]string, 0, count)

	for _, ts := range timestamps {
		outputPath := filepath.Join(outDir, fmt.Sprintf("thumb-%s.jpg", uuid.NewString()))
		if err := c.captureFrame(ctx, inputPath, outputPath, ts); err != nil {
			return nil, err
		}
		paths = append(paths, outputPath)
	}

	return paths, nil
}

func (c *Client) captureFrame(ctx context.Context, inputPath, outputPath string, timestamp float64) error {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.FFmpegPath,
		"-y",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", inputPath,
		"-frames:v", "1",
		"-s", fmt.Sprintf("%dx%d", thumbnailWidth, thumbnailHeight),
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail at %.3fs failed: %v\nStderr: %s", timestamp, err, stderr.String())
	}
	return nil
}

// ThumbnailTimestamps spreads count samples evenly through (0, duration),
// at duration/(count+1)*i for i in 1..count. The first and last frames
// are deliberately skipped.
func ThumbnailTimestamps(duration float64, count int) []float64 {
	interval := duration / float64(count+1)
	timestamps := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		timestamps = append(timestamps, interval*float64(i))
	}
	return timestamps
}
