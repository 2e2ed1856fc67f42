package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/platform"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const progressInterval = 500 * time.Millisecond

// YtDlp implements Provider on top of the yt-dlp executable
type YtDlp struct {
	binaryPath      string
	metadataTimeout time.Duration
	downloadTimeout time.Duration
	logger          *logging.Logger
}

// NewYtDlp creates a yt-dlp backed provider. An empty binaryPath resolves
// yt-dlp from PATH. Zero timeouts disable the corresponding deadline.
func NewYtDlp(binaryPath string, metadataTimeout, downloadTimeout time.Duration, logger *logging.Logger) *YtDlp {
	return &YtDlp{
		binaryPath:      binaryPath,
		metadataTimeout: metadataTimeout,
		downloadTimeout: downloadTimeout,
		logger:          logger,
	}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoWarnings()
	if y.binaryPath != "" {
		cmd.SetExecutable(y.binaryPath)
	}
	return cmd
}

// FetchMetadata runs yt-dlp in simulate mode and parses its JSON dump
func (y *YtDlp) FetchMetadata(ctx context.Context, url string) (*models.VideoInfo, error) {
	span, ctx := tracing.StartSpan(ctx, "provider.fetch_metadata")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "url", url)

	if y.metadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.metadataTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := y.command().
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, url)
	duration := time.Since(start)

	if err != nil {
		err = fmt.Errorf("%w: yt-dlp: %v%s", ErrExtraction, err, stderrOf(res))
		y.observe("fetch_metadata", url, duration, err)
		tracing.LogError(span, err)
		return nil, err
	}

	info, err := ParseMetadata([]byte(res.Stdout))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrExtraction, err)
		y.observe("fetch_metadata", url, duration, err)
		tracing.LogError(span, err)
		return nil, err
	}
	info.Platform = platform.Classify(url)

	y.observe("fetch_metadata", url, duration, nil)
	return info, nil
}

// Download runs yt-dlp with the requested selector and post-processing
func (y *YtDlp) Download(ctx context.Context, req *DownloadRequest) error {
	span, ctx := tracing.StartSpan(ctx, "provider.download")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "url", req.URL)
	tracing.SetTag(span, "selector", req.Selector)

	if y.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.downloadTimeout)
		defer cancel()
	}

	cmd := y.command().
		Format(req.Selector).
		Output(req.OutputTemplate)

	if req.ExtractAudio {
		cmd.ExtractAudio().AudioFormat(req.AudioFormat)
		if req.AudioQuality != "" {
			cmd.AudioQuality(req.AudioQuality)
		}
	} else if req.MergeFormat != "" {
		cmd.MergeOutputFormat(req.MergeFormat)
	}

	if req.Progress != nil {
		report := req.Progress
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			report(Progress{
				DownloadedBytes: int64(update.DownloadedBytes),
				TotalBytes:      int64(update.TotalBytes),
			})
		})
	}

	start := time.Now()
	res, err := cmd.Run(ctx, req.URL)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: timed out after %s", ErrDownload, y.downloadTimeout)
		} else {
			err = fmt.Errorf("%w: yt-dlp: %v%s", ErrDownload, err, stderrOf(res))
		}
		y.observe("download", req.URL, duration, err)
		tracing.LogError(span, err)
		return err
	}

	y.observe("download", req.URL, duration, nil)
	return nil
}

func (y *YtDlp) observe(operation, url string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordProviderCall(operation, status, duration.Seconds())
	if y.logger != nil {
		y.logger.LogProviderCall(operation, url, duration, err)
	}
}

func stderrOf(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	stderr := strings.TrimSpace(res.Stderr)
	if stderr == "" {
		return ""
	}
	return ", stderr: " + stderr
}

// rawInfo is the subset of yt-dlp's info dict we consume
type rawInfo struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  *float64    `json:"duration"`
	Formats   []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
}

// ParseMetadata converts a yt-dlp JSON info dict into VideoInfo
func ParseMetadata(data []byte) (*models.VideoInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if raw.ID == "" && raw.Title == "" {
		return nil, fmt.Errorf("yt-dlp output has no id or title")
	}

	info := &models.VideoInfo{
		ID:        raw.ID,
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Formats:   make([]models.MediaFormat, 0, len(raw.Formats)),
	}
	if raw.Duration != nil {
		info.Duration = *raw.Duration
	}

	for _, rf := range raw.Formats {
		f := models.MediaFormat{
			FormatID: rf.FormatID,
			Ext:      rf.Ext,
			Width:    intOf(rf.Width),
			Height:   intOf(rf.Height),
			Note:     rf.FormatNote,
			VCodec:   codecOf(rf.VCodec),
			ACodec:   codecOf(rf.ACodec),
		}
		f.Resolution = models.FormatResolution(f.Width, f.Height)

		switch {
		case rf.Filesize != nil:
			size := int64(*rf.Filesize)
			f.Filesize = &size
		case rf.FilesizeApprox != nil:
			size := int64(*rf.FilesizeApprox)
			f.Filesize = &size
		}

		info.Formats = append(info.Formats, f)
	}

	return info, nil
}

func intOf(v *float64) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

// codecOf keeps yt-dlp's "none" sentinel and maps a missing field to unknown
func codecOf(v *string) string {
	if v == nil || *v == "" {
		return "unknown"
	}
	return *v
}
