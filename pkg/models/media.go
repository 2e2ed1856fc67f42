package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Platform identifies the site a media URL belongs to
type Platform string

// Supported platforms
const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformReddit    Platform = "reddit"
	PlatformUnknown   Platform = "unknown"
)

// Sentinel values used by the provider for missing stream information
const (
	CodecNone         = "none"
	ResolutionUnknown = "unknown"
)

// Synthetic format ids understood by the job manager
const (
	FormatBestQuality = "best[ext=mp4]/best"
	FormatBestAudio   = "bestaudio"
)

// MediaFormat describes one downloadable stream reported by the provider
type MediaFormat struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Filesize   *int64 `json:"filesize,omitempty"`
	Note       string `json:"format_note"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

// HasVideo reports whether the format carries a video stream
func (f MediaFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != CodecNone
}

// HasAudio reports whether the format carries an audio stream
func (f MediaFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != CodecNone
}

// ResolutionHeight returns the pixel height of the format, or 0 if unknown
func (f MediaFormat) ResolutionHeight() int {
	if f.Height > 0 {
		return f.Height
	}
	parts := strings.Split(f.Resolution, "x")
	if len(parts) != 2 {
		return 0
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0
	}
	return h
}

// FormatResolution renders a WxH label, using "unknown" for missing sides
func FormatResolution(width, height int) string {
	if width <= 0 && height <= 0 {
		return ResolutionUnknown
	}
	w, h := ResolutionUnknown, ResolutionUnknown
	if width > 0 {
		w = strconv.Itoa(width)
	}
	if height > 0 {
		h = strconv.Itoa(height)
	}
	return fmt.Sprintf("%sx%s", w, h)
}

// VideoInfo holds the metadata the provider returns for a URL
type VideoInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Duration  float64       `json:"duration"`
	Platform  Platform      `json:"platform"`
	Formats   []MediaFormat `json:"formats"`
}

// FindFormat looks up a provider format by id
func (v *VideoInfo) FindFormat(formatID string) (MediaFormat, bool) {
	for _, f := range v.Formats {
		if f.FormatID == formatID {
			return f, true
		}
	}
	return MediaFormat{}, false
}
