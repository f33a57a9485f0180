package model

import "testing"

func TestPlaybackURL(t *testing.T) {
	tests := []struct {
		name     string
		versions RenditionMap
		want     string
	}{
		{
			name:     "prefers 720p",
			versions: RenditionMap{"1080p": "u1080", "720p": "u720", "480p": "u480", "original": "uorig"},
			want:     "u720",
		},
		{
			name:     "falls back to 480p",
			versions: RenditionMap{"480p": "u480", "360p": "u360", "original": "uorig"},
			want:     "u480",
		},
		{
			name:     "falls back to original",
			versions: RenditionMap{"original": "uorig"},
			want:     "uorig",
		},
		{
			name:     "empty set",
			versions: RenditionMap{},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlaybackURL(tt.versions); got != tt.want {
				t.Errorf("PlaybackURL(%v) = %q, want %q", tt.versions, got, tt.want)
			}
		})
	}
}

func TestRenditionMapScan(t *testing.T) {
	var m RenditionMap
	if err := m.Scan([]byte(`{"720p":"u720","original":"uorig"}`)); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if m["720p"] != "u720" || m["original"] != "uorig" {
		t.Errorf("scanned map = %v", m)
	}

	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if m != nil {
		t.Errorf("Scan(nil) should clear the map, got %v", m)
	}
}
