package ffmpeg

import (
	"reflect"
	"strings"
	"testing"
)

func TestThumbnailTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		count    int
	}{
		{name: "ten seconds five thumbs", duration: 10, count: 5},
		{name: "short clip", duration: 1.2, count: 5},
		{name: "single thumb", duration: 60, count: 1},
		{name: "long video", duration: 7200, count: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThumbnailTimestamps(tt.duration, tt.count)
			if len(got) != tt.count {
				t.Fatalf("expected %d timestamps, got %d", tt.count, len(got))
			}
			for i, ts := range got {
				if ts <= 0 || ts >= tt.duration {
					t.Errorf("timestamp %d = %f out of bounds (0, %f)", i, ts, tt.duration)
				}
				if i > 0 && ts <= got[i-1] {
					t.Errorf("timestamps not increasing at %d: %f after %f", i, ts, got[i-1])
				}
			}
		})
	}
}

func TestThumbnailTimestampsSpacing(t *testing.T) {
	got := ThumbnailTimestamps(12, 5)
	want := []float64{2, 4, 6, 8, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("timestamp %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestRenditionLadder(t *testing.T) {
	tests := []struct {
		name   string
		height int
		want   []string
	}{
		{name: "1080p source", height: 1080, want: []string{"360p", "480p", "720p", "1080p"}},
		{name: "720p source", height: 720, want: []string{"360p", "480p", "720p"}},
		{name: "480p source", height: 480, want: []string{"360p", "480p"}},
		{name: "360p source", height: 360, want: []string{"360p"}},
		{name: "tiny source", height: 240, want: nil},
		{name: "4k source", height: 2160, want: []string{"360p", "480p", "720p", "1080p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenditionLadder(tt.height)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RenditionLadder(%d) = %v, want %v", tt.height, got, tt.want)
			}
		})
	}
}

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("in.mp4", "out.mp4", QualityPresets["720p"])
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i in.mp4",
		"-c:v libx264",
		"-c:a aac",
		"scale=1280:720",
		"-b:v 2500k",
		"-movflags +faststart",
		"-crf 23",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("transcode args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output path must be the final argument, got %s", args[len(args)-1])
	}
}

func TestMetadataResolution(t *testing.T) {
	m := Metadata{Width: 1280, Height: 720}
	if got := m.Resolution(); got != "1280x720" {
		t.Errorf("Resolution() = %q, want 1280x720", got)
	}
}
