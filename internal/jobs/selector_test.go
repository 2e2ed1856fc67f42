package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

func TestBuildSelector(t *testing.T) {
	info := &models.VideoInfo{
		Formats: []models.MediaFormat{
			{FormatID: "18", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Filesize: int64Ptr(2048)},
			{FormatID: "43", Ext: "webm", VCodec: "vp8", ACodec: "vorbis"},
			{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: models.CodecNone},
			{FormatID: "248", Ext: "webm", VCodec: "vp9", ACodec: models.CodecNone},
		},
	}

	tests := []struct {
		name         string
		formatID     string
		wantSelector string
		wantExt      string
		wantMerge    string
		wantExtract  bool
	}{
		{"audio only", models.FormatBestAudio, "bestaudio/best", "mp3", "", true},
		{"best quality", models.FormatBestQuality, "best[ext=mp4]/best", "mp4", "mp4", false},
		{"muxed mp4", "18", "18", "mp4", "mp4", false},
		{"muxed webm keeps container", "43", "43", "webm", "webm", false},
		{"video only gets audio", "137", "137+bestaudio[ext=m4a]/best", "mp4", "mp4", false},
		{"video only webm merges to mp4", "248", "248+bestaudio[ext=m4a]/best", "mp4", "mp4", false},
		{"unknown id passed through", "999", "999", "mp4", "mp4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := buildSelector(tt.formatID, info, "192")
			assert.Equal(t, tt.wantSelector, p.Selector)
			assert.Equal(t, tt.wantExt, p.Ext)
			assert.Equal(t, tt.wantMerge, p.MergeFormat)
			assert.Equal(t, tt.wantExtract, p.ExtractAudio)
		})
	}
}

func TestBuildSelectorAudioSettings(t *testing.T) {
	p := buildSelector(models.FormatBestAudio, &models.VideoInfo{}, "320")
	assert.Equal(t, "mp3", p.AudioFormat)
	assert.Equal(t, "320", p.AudioQuality)
}

func TestBuildSelectorCarriesEstimate(t *testing.T) {
	info := &models.VideoInfo{Formats: []models.MediaFormat{
		{FormatID: "18", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Filesize: int64Ptr(2048)},
	}}
	p := buildSelector("18", info, "192")
	if assert.NotNil(t, p.Estimate) {
		assert.Equal(t, int64(2048), *p.Estimate)
	}
}
