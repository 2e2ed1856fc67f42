package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// setupTestRepository connects to TEST_DATABASE_URL and resets the
// download table. Tests are skipped when it is unset.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test - TEST_DATABASE_URL not set")
	}

	db, err := New(config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	_, err = db.Pool.Exec(ctx, `DROP TABLE IF EXISTS download`)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrations must be idempotent")

	return NewRepository(db)
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "history", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=history sslmode=disable", DSN(cfg))

	cfg.URL = "postgres://u:p@db:5432/history"
	assert.Equal(t, "postgres://u:p@db:5432/history", DSN(cfg))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "東京", truncate("東京都", 2))
}

func TestRepository_HistoryLifecycle(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	size := int64(1048576)
	duration := 212
	for i, title := range []string{"first", "second", "third"} {
		rec := &models.HistoryRecord{
			VideoID:      "vid",
			Title:        title,
			Format:       "18 (mp4)",
			Platform:     models.PlatformTikTok,
			Filesize:     &size,
			ThumbnailURL: "https://cdn.example/" + strings.Repeat("x", 900),
			Duration:     &duration,
		}
		rec.DownloadDate = time.Date(2024, 1, 1+i, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordDownload(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Title)
	assert.Equal(t, models.PlatformTikTok, recent[0].Platform)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	got, err := repo.GetDownload(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "3:32", got.View().DurationText)

	require.NoError(t, repo.DeleteDownload(ctx, all[0].ID))
	err = repo.DeleteDownload(ctx, all[0].ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = repo.GetDownload(ctx, all[0].ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepository_LongTitleIsTruncated(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	rec := &models.HistoryRecord{
		VideoID: "vid",
		Title:   strings.Repeat("t", 400),
		Format:  "bestaudio (mp3)",
	}
	require.NoError(t, repo.RecordDownload(ctx, rec))

	got, err := repo.GetDownload(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.Title, maxTitleLen)
	assert.Equal(t, models.PlatformYouTube, got.Platform)
	assert.Nil(t, got.Filesize)
}
