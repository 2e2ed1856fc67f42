package formats

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// Buckets are the standard heights offered to users, ascending
var Buckets = []int{144, 240, 360, 480, 720, 1080, 1440, 2160}

var containers = map[string]bool{
	"mp4":  true,
	"webm": true,
}

// Resolve turns the provider's raw format list into the menu shown to users:
// at most one muxed format per resolution bucket, a best quality fallback
// when no bucket could be filled, and an audio only entry last.
//
// Formats are assigned in provider order. A format belongs to the smallest
// bucket that is at least its height and the first one to reach a bucket
// keeps it.
func Resolve(raw []models.MediaFormat) []models.MediaFormat {
	assigned := make(map[int]models.MediaFormat, len(Buckets))

	for _, f := range Eligible(raw) {
		bucket, ok := BucketFor(f.ResolutionHeight())
		if !ok {
			continue
		}
		if _, taken := assigned[bucket]; taken {
			continue
		}
		f.Note = fmt.Sprintf("%dp", bucket)
		assigned[bucket] = f
	}

	menu := make([]models.MediaFormat, 0, len(assigned)+2)
	for _, bucket := range Buckets {
		if f, ok := assigned[bucket]; ok {
			menu = append(menu, f)
		}
	}

	if len(menu) == 0 {
		menu = append(menu, BestQuality())
	}

	return append(menu, AudioOnly())
}

// Eligible filters formats down to muxed audio+video streams of known
// resolution in a browser friendly container
func Eligible(raw []models.MediaFormat) []models.MediaFormat {
	var out []models.MediaFormat
	for _, f := range raw {
		if !f.HasVideo() || !f.HasAudio() {
			continue
		}
		if f.ResolutionHeight() == 0 {
			continue
		}
		if !containers[f.Ext] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// BucketFor returns the smallest bucket that fits height
func BucketFor(height int) (int, bool) {
	if height <= 0 {
		return 0, false
	}
	for _, b := range Buckets {
		if height <= b {
			return b, true
		}
	}
	return 0, false
}

// BestQuality is the fallback entry used when no bucket was filled
func BestQuality() models.MediaFormat {
	return models.MediaFormat{
		FormatID:   models.FormatBestQuality,
		Ext:        "mp4",
		Resolution: "Best quality",
		Note:       "Best quality",
		VCodec:     "h264",
		ACodec:     "aac",
	}
}

// AudioOnly is the mp3 extraction entry appended to every menu
func AudioOnly() models.MediaFormat {
	return models.MediaFormat{
		FormatID:   models.FormatBestAudio,
		Ext:        "mp3",
		Resolution: "Audio only",
		Note:       "MP3 Audio",
		VCodec:     models.CodecNone,
		ACodec:     "mp3",
	}
}
