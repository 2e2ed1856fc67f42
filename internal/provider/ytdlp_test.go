package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfo = `{
  "id": "dQw4w9WgXcQ",
  "title": "Sample Clip",
  "thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
  "duration": 212.5,
  "formats": [
    {"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "filesize": 3433514, "format_note": "medium"},
    {"format_id": "18", "ext": "mp4", "width": 640, "height": 360, "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "filesize_approx": 11223344, "format_note": "360p"},
    {"format_id": "137", "ext": "mp4", "width": 1920, "height": 1080, "vcodec": "avc1.640028", "acodec": "none", "filesize": null},
    {"format_id": "sb0", "ext": "mhtml", "width": null, "height": null}
  ]
}`

func TestParseMetadata(t *testing.T) {
	info, err := ParseMetadata([]byte(sampleInfo))
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, "Sample Clip", info.Title)
	assert.Equal(t, 212.5, info.Duration)
	require.Len(t, info.Formats, 4)

	audio := info.Formats[0]
	assert.False(t, audio.HasVideo())
	assert.True(t, audio.HasAudio())
	require.NotNil(t, audio.Filesize)
	assert.Equal(t, int64(3433514), *audio.Filesize)

	muxed := info.Formats[1]
	assert.Equal(t, "640x360", muxed.Resolution)
	assert.Equal(t, 360, muxed.ResolutionHeight())
	require.NotNil(t, muxed.Filesize, "filesize_approx should be used when filesize is absent")
	assert.Equal(t, int64(11223344), *muxed.Filesize)

	videoOnly := info.Formats[2]
	assert.True(t, videoOnly.HasVideo())
	assert.False(t, videoOnly.HasAudio())
	assert.Nil(t, videoOnly.Filesize)

	storyboard := info.Formats[3]
	assert.Equal(t, "unknown", storyboard.VCodec)
	assert.Equal(t, "unknown", storyboard.Resolution)
	assert.Equal(t, 0, storyboard.ResolutionHeight())
}

func TestParseMetadataRejectsGarbage(t *testing.T) {
	_, err := ParseMetadata([]byte("ERROR: Unsupported URL"))
	assert.Error(t, err)

	_, err = ParseMetadata([]byte(`{}`))
	assert.Error(t, err)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, Progress{DownloadedBytes: 10}.Percent())
	assert.Equal(t, 50.0, Progress{DownloadedBytes: 50, TotalBytes: 100}.Percent())
	assert.Equal(t, 100.0, Progress{DownloadedBytes: 150, TotalBytes: 100}.Percent())
}
