package jobs

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const (
	defaultContainer = "mp4"
	audioContainer   = "mp3"
)

// plan is what the provider is asked to do for one job
type plan struct {
	Selector     string
	Ext          string
	MergeFormat  string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	// Estimate is the provider-reported size, used when the file cannot be measured
	Estimate *int64
}

// buildSelector maps a menu format id to a provider selector and the
// container the artifact will end up in
func buildSelector(formatID string, info *models.VideoInfo, audioQuality string) plan {
	switch formatID {
	case models.FormatBestAudio:
		return plan{
			Selector:     "bestaudio/best",
			Ext:          audioContainer,
			ExtractAudio: true,
			AudioFormat:  audioContainer,
			AudioQuality: audioQuality,
		}
	case models.FormatBestQuality:
		return plan{
			Selector:    models.FormatBestQuality,
			Ext:         defaultContainer,
			MergeFormat: defaultContainer,
		}
	}

	p := plan{
		Selector:    formatID,
		Ext:         defaultContainer,
		MergeFormat: defaultContainer,
	}

	original, ok := info.FindFormat(formatID)
	if !ok {
		return p
	}
	p.Estimate = original.Filesize

	if !original.HasAudio() {
		p.Selector = fmt.Sprintf("%s+bestaudio[ext=m4a]/best", formatID)
		return p
	}

	if original.Ext != "" {
		p.Ext = original.Ext
		p.MergeFormat = original.Ext
	}
	return p
}
