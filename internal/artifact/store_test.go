package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewStoreWithoutRootOwnsTempDir(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	assert.DirExists(t, s.Root())
	require.NoError(t, s.Close(true))
	assert.NoDirExists(t, s.Root())
}

func TestCloseKeepsConfiguredRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	s, err := NewStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Close(true))
	assert.DirExists(t, root)
}

func TestCloseWithoutCleanupKeepsTempDir(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	defer os.RemoveAll(s.Root())

	require.NoError(t, s.Close(false))
	assert.DirExists(t, s.Root())
}

func TestTemplateAndPath(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.Root(), "abc.%(ext)s"), s.Template("abc"))
	assert.Equal(t, filepath.Join(s.Root(), "abc.mp4"), s.Path("abc", "mp4"))
}

func TestLocate(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	t.Run("exact path", func(t *testing.T) {
		write(t, s.Path("exact", "mp4"), "x")
		path, err := s.Locate("exact", "mp4")
		require.NoError(t, err)
		assert.Equal(t, s.Path("exact", "mp4"), path)
	})

	t.Run("different container", func(t *testing.T) {
		write(t, s.Path("other", "webm"), "x")
		path, err := s.Locate("other", "mp4")
		require.NoError(t, err)
		assert.Equal(t, s.Path("other", "webm"), path)
	})

	t.Run("partial files ignored", func(t *testing.T) {
		write(t, s.Path("partial", "mp4.part"), "x")
		_, err := s.Locate("partial", "mp4")
		assert.True(t, errors.Is(err, ErrMissing))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Locate("nothing", "mp4")
		assert.True(t, errors.Is(err, ErrMissing))
	})

	t.Run("ambiguous", func(t *testing.T) {
		write(t, s.Path("twice", "webm"), "x")
		write(t, s.Path("twice", "mkv"), "x")
		_, err := s.Locate("twice", "mp4")
		assert.True(t, errors.Is(err, ErrMissing))
	})
}

func TestSizeAndRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	path := s.Path("job", "mp3")
	write(t, path, "12345")
	write(t, s.Path("job", "mp3.part"), "1")

	size, err := s.Size(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.True(t, s.Exists(path))

	require.NoError(t, s.Remove("job"))
	assert.False(t, s.Exists(path))
	assert.NoFileExists(t, s.Path("job", "mp3.part"))

	_, err = s.Size(path)
	assert.True(t, errors.Is(err, ErrMissing))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Cat's Video: Part #1!", "Cats_Video_Part_1"},
		{"  spaced   out  ", "spaced_out"},
		{"already_safe-name", "already_safe-name"},
		{"Déjà vu 東京", "Déjà_vu_東京"},
		{"???", "video"},
		{"", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.title))
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "youtube_Cats_Video_Part_1.mp4", Filename(models.PlatformYouTube, "Cat's Video: Part #1!", "mp4"))
	assert.Equal(t, "unknown_video.mp3", Filename("", "", "mp3"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mp3", ContentType("mp3"))
	assert.Equal(t, "video/mp4", ContentType("mp4"))
	assert.Equal(t, "video/webm", ContentType("webm"))
}

func TestExtOf(t *testing.T) {
	assert.Equal(t, "webm", ExtOf("/tmp/x/abc.webm"))
	assert.Equal(t, "", ExtOf("/tmp/x/abc"))
}
