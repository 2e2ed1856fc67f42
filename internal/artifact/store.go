// Package artifact owns the on-disk directory that downloaded files are
// written to, and the naming rules used when serving them.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// ErrMissing is returned when no file exists for a job id
var ErrMissing = errors.New("artifact missing")

// Store is a flat directory of <job-id>.<ext> files
type Store struct {
	root  string
	owned bool
}

// NewStore opens root, creating it if needed. An empty root allocates a
// fresh temporary directory which Close removes when cleanup is set.
func NewStore(root string) (*Store, error) {
	if root == "" {
		dir, err := os.MkdirTemp("", "mediafetch-")
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact root: %w", err)
		}
		return &Store{root: dir, owned: true}, nil
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the artifact directory
func (s *Store) Root() string {
	return s.root
}

// Template returns the provider output template for a job
func (s *Store) Template(jobID string) string {
	return filepath.Join(s.root, jobID+".%(ext)s")
}

// Path returns the expected artifact path for a job and extension
func (s *Store) Path(jobID, ext string) string {
	return filepath.Join(s.root, jobID+"."+ext)
}

// Locate finds the artifact of a job. The exact <id>.<ext> path wins,
// otherwise a single <id>.* file is accepted, since the provider may pick
// a container other than the requested one.
func (s *Store) Locate(jobID, ext string) (string, error) {
	if ext != "" {
		exact := s.Path(jobID, ext)
		if info, err := os.Stat(exact); err == nil && info.Mode().IsRegular() {
			return exact, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(s.root, globEscape(jobID)+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to search artifacts: %w", err)
	}

	var files []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrMissing, jobID)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf("%w: %d candidate files for %s", ErrMissing, len(files), jobID)
	}
}

// Size returns the size of the file at path
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return info.Size(), nil
}

// Exists reports whether a regular file is present at path
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes every file belonging to jobID, including partial downloads
func (s *Store) Remove(jobID string) error {
	matches, err := filepath.Glob(filepath.Join(s.root, globEscape(jobID)+".*"))
	if err != nil {
		return fmt.Errorf("failed to search artifacts: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

// Close removes the root if it was allocated by NewStore and cleanup is true
func (s *Store) Close(cleanup bool) error {
	if !s.owned || !cleanup {
		return nil
	}
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("failed to remove artifact root: %w", err)
	}
	return nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Sanitize turns a title into a filesystem-safe name fragment
func Sanitize(title string) string {
	name := unsafeChars.ReplaceAllString(title, "")
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, "_")
	if name == "" {
		return "video"
	}
	return name
}

// Filename builds the download name presented to clients
func Filename(platform models.Platform, title, ext string) string {
	if platform == "" {
		platform = models.PlatformUnknown
	}
	return fmt.Sprintf("%s_%s.%s", platform, Sanitize(title), ext)
}

// ContentType returns the MIME type served for an artifact extension
func ContentType(ext string) string {
	if ext == "mp3" {
		return "audio/mp3"
	}
	return "video/" + ext
}

// ExtOf returns the extension of path without the dot
func ExtOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
