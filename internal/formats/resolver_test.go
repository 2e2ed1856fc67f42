package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

func avFormat(id string, height int) models.MediaFormat {
	return models.MediaFormat{
		FormatID:   id,
		Ext:        "mp4",
		Resolution: models.FormatResolution(height*16/9, height),
		Height:     height,
		Note:       "original",
		VCodec:     "avc1.4d401e",
		ACodec:     "mp4a.40.2",
	}
}

func ids(menu []models.MediaFormat) []string {
	out := make([]string, len(menu))
	for i, f := range menu {
		out[i] = f.FormatID
	}
	return out
}

func TestResolve_NoEligibleFormats(t *testing.T) {
	raw := []models.MediaFormat{
		{FormatID: "sb0", Ext: "mhtml", Resolution: "48x27", Height: 27, Note: "storyboard", VCodec: models.CodecNone, ACodec: models.CodecNone},
		{FormatID: "140", Ext: "m4a", Resolution: models.ResolutionUnknown, VCodec: models.CodecNone, ACodec: "mp4a.40.2"},
		{FormatID: "137", Ext: "mp4", Resolution: "1920x1080", Height: 1080, VCodec: "avc1", ACodec: models.CodecNone},
	}

	for _, input := range [][]models.MediaFormat{nil, raw} {
		menu := Resolve(input)
		require.Len(t, menu, 2)
		assert.Equal(t, models.FormatBestQuality, menu[0].FormatID)
		assert.Equal(t, "Best quality", menu[0].Note)
		assert.Equal(t, models.FormatBestAudio, menu[1].FormatID)
		assert.Equal(t, "mp3", menu[1].Ext)
		assert.Equal(t, models.CodecNone, menu[1].VCodec)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	raw := []models.MediaFormat{avFormat("A", 700), avFormat("B", 150)}

	menu := Resolve(raw)

	require.Len(t, menu, 3)
	assert.Equal(t, []string{"B", "A", models.FormatBestAudio}, ids(menu))
	assert.Equal(t, "240p", menu[0].Note)
	assert.Equal(t, "720p", menu[1].Note)
}

func TestResolve_BucketKeptByFirstFormat(t *testing.T) {
	raw := []models.MediaFormat{
		avFormat("first360", 360),
		avFormat("second360", 358),
		avFormat("hd", 1080),
	}

	menu := Resolve(raw)

	assert.Equal(t, []string{"first360", "hd", models.FormatBestAudio}, ids(menu))
	assert.Equal(t, "360p", menu[0].Note)
	assert.Equal(t, "1080p", menu[1].Note)
}

func TestResolve_AscendingOrder(t *testing.T) {
	raw := []models.MediaFormat{
		avFormat("2160", 2160),
		avFormat("144", 144),
		avFormat("720", 720),
		avFormat("480", 480),
		avFormat("180", 180),
	}

	menu := Resolve(raw)

	assert.Equal(t, []string{"144", "180", "480", "720", "2160", models.FormatBestAudio}, ids(menu))
	notes := []string{}
	for _, f := range menu[:5] {
		notes = append(notes, f.Note)
	}
	assert.Equal(t, []string{"144p", "240p", "480p", "720p", "2160p"}, notes)
}

func TestResolve_FiltersIneligible(t *testing.T) {
	videoOnly := avFormat("videoonly", 720)
	videoOnly.ACodec = models.CodecNone
	audioOnly := avFormat("audioonly", 720)
	audioOnly.VCodec = models.CodecNone
	mkv := avFormat("mkv", 480)
	mkv.Ext = "mkv"
	unknown := avFormat("unknown", 0)
	unknown.Resolution = models.ResolutionUnknown
	tooTall := avFormat("8k", 4320)
	webm := avFormat("webm", 360)
	webm.Ext = "webm"

	menu := Resolve([]models.MediaFormat{videoOnly, audioOnly, mkv, unknown, tooTall, webm})

	assert.Equal(t, []string{"webm", models.FormatBestAudio}, ids(menu))
}

func TestResolve_ParsesResolutionString(t *testing.T) {
	f := avFormat("parsed", 0)
	f.Resolution = "640x360"

	menu := Resolve([]models.MediaFormat{f})

	require.Len(t, menu, 2)
	assert.Equal(t, "360p", menu[0].Note)
}

func TestResolve_Idempotent(t *testing.T) {
	raw := []models.MediaFormat{avFormat("A", 700), avFormat("B", 150), avFormat("C", 1080)}

	first := Resolve(raw)
	second := Resolve(raw)

	assert.Equal(t, first, second)
	assert.Equal(t, "original", raw[0].Note, "input must not be relabelled")
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		height int
		bucket int
		ok     bool
	}{
		{0, 0, false},
		{1, 144, true},
		{144, 144, true},
		{145, 240, true},
		{1081, 1440, true},
		{2160, 2160, true},
		{2161, 0, false},
	}

	for _, tt := range tests {
		bucket, ok := BucketFor(tt.height)
		assert.Equal(t, tt.ok, ok, "height %d", tt.height)
		assert.Equal(t, tt.bucket, bucket, "height %d", tt.height)
	}
}
