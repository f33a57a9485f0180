package ffmpeg

import "sort"

// Preset is the fixed encoder configuration for one quality label.
type Preset struct {
	Width   int
	Height  int
	Bitrate string
}

// QualityPresets is the rendition ladder. A rendition is generated only
// when its target height does not exceed the source height.
var QualityPresets = map[string]Preset{
	"360p":  {Width: 640, Height: 360, Bitrate: "500k"},
	"480p":  {Width: 854, Height: 480, Bitrate: "1000k"},
	"720p":  {Width: 1280, Height: 720, Bitrate: "2500k"},
	"1080p": {Width: 1920, Height: 1080, Bitrate: "5000k"},
}

// RenditionLadder returns the preset labels applicable to a source of
// the given height, lowest quality first.
func RenditionLadder(sourceHeight int) []string {
	var labels []string
	for label, preset := range QualityPresets {
		if preset.Height <= sourceHeight {
			labels = append(labels, label)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		return QualityPresets[labels[i]].Height < QualityPresets[labels[j]].Height
	})
	return labels
}
