// Package provider wraps the external media extraction tool behind a narrow
// contract: fetch metadata for a URL, and download a selected format of it
// to a local path.
package provider

import (
	"context"
	"errors"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

var (
	// ErrExtraction is returned when metadata could not be fetched
	ErrExtraction = errors.New("extraction failed")
	// ErrDownload is returned when the provider failed to produce a file
	ErrDownload = errors.New("download failed")
)

// Provider is the media extraction capability consumed by the job manager
type Provider interface {
	// FetchMetadata returns title, thumbnail, duration and the raw format
	// list for url. Formats are not filtered.
	FetchMetadata(ctx context.Context, url string) (*models.VideoInfo, error)

	// Download writes exactly one file derived from req.OutputTemplate and
	// the resolved container extension.
	Download(ctx context.Context, req *DownloadRequest) error
}

// DownloadRequest describes a single provider download
type DownloadRequest struct {
	URL string
	// Selector is a literal format id, a fallback expression such as
	// "best[ext=mp4]/best", or a composite "id+bestaudio[ext=m4a]/best".
	Selector string
	// OutputTemplate is the target path with a %(ext)s placeholder
	OutputTemplate string
	// MergeFormat is the container used when streams are muxed
	MergeFormat  string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	Progress     func(Progress)
}

// Progress reports bytes transferred for an in-flight download
type Progress struct {
	DownloadedBytes int64
	TotalBytes      int64
}

// Percent returns completion in the 0-100 range, or 0 if the total is unknown
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	pct := float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
