package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionHeight(t *testing.T) {
	tests := []struct {
		name   string
		format MediaFormat
		want   int
	}{
		{"explicit height", MediaFormat{Height: 720, Resolution: "1280x1080"}, 720},
		{"parsed", MediaFormat{Resolution: "640x360"}, 360},
		{"unknown", MediaFormat{Resolution: "unknownxunknown"}, 0},
		{"audio only", MediaFormat{Resolution: "audio only"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.ResolutionHeight())
		})
	}
}

func TestStreamPresence(t *testing.T) {
	f := MediaFormat{VCodec: "avc1", ACodec: CodecNone}
	assert.True(t, f.HasVideo())
	assert.False(t, f.HasAudio())
	assert.False(t, MediaFormat{}.HasVideo())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "Unknown", FormatDuration(0))
	assert.Equal(t, "0:59", FormatDuration(59))
	assert.Equal(t, "3:32", FormatDuration(212))
	assert.Equal(t, "1:02:05", FormatDuration(3725))
}

func TestFormatFilesize(t *testing.T) {
	assert.Equal(t, "Unknown", FormatFilesize(0))
	assert.Equal(t, "512 B", FormatFilesize(512))
	assert.Equal(t, "1.50 KB", FormatFilesize(1536))
	assert.Equal(t, "2.00 GB", FormatFilesize(2*1024*1024*1024))
}

func TestNewHistoryRecord(t *testing.T) {
	size := int64(4096)
	job := &Job{
		VideoID:   "abc",
		Title:     "Clip",
		FormatID:  "22",
		Ext:       "mp4",
		Platform:  PlatformTwitter,
		Thumbnail: "https://example.com/t.jpg",
		Duration:  61.7,
		Filesize:  &size,
	}

	rec := NewHistoryRecord(job)
	assert.Equal(t, "22 (mp4)", rec.Format)
	assert.Equal(t, PlatformTwitter, rec.Platform)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, 61, *rec.Duration)

	size = 1
	assert.Equal(t, int64(4096), *rec.Filesize, "record must not alias the job")

	view := rec.View()
	assert.Equal(t, "1:01", view.DurationText)
	assert.Equal(t, "4.00 KB", view.FilesizeText)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"video_id":"abc"`)
	assert.Contains(t, string(data), `"filesize_text":"4.00 KB"`)
}

func TestJobCloneAndEvent(t *testing.T) {
	size := int64(10)
	started := time.Now()
	job := &Job{ID: "j1", Status: JobStatusDownloading, Filesize: &size, StartedAt: &started}

	c := job.Clone()
	*c.Filesize = 99
	assert.Equal(t, int64(10), *job.Filesize)

	evt := job.Event()
	assert.Empty(t, evt.DownloadURL)
	assert.False(t, job.IsFinished())

	job.Status = JobStatusCompleted
	evt = job.Event()
	assert.True(t, job.IsFinished())
	assert.Equal(t, "/get_file/j1", evt.DownloadURL)
}

func TestFindFormat(t *testing.T) {
	info := &VideoInfo{Formats: []MediaFormat{{FormatID: "18"}, {FormatID: "22"}}}

	f, ok := info.FindFormat("22")
	require.True(t, ok)
	assert.Equal(t, "22", f.FormatID)

	_, ok = info.FindFormat("999")
	assert.False(t, ok)
}
