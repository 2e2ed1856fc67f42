package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// ErrNotFound is returned when a history record does not exist
var ErrNotFound = errors.New("download record not found")

// Column widths of the download table
const (
	maxVideoIDLen  = 50
	maxTitleLen    = 255
	maxFormatLen   = 50
	maxPlatformLen = 20
	maxThumbLen    = 1024
)

// Repository provides database operations for download history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDatabaseOperation(operation, status, time.Since(start).Seconds())
}

// RecordDownload inserts a completed download and fills in its id
func (r *Repository) RecordDownload(ctx context.Context, rec *models.HistoryRecord) (err error) {
	start := time.Now()
	defer func() { observe("insert_download", start, err) }()

	if rec.DownloadDate.IsZero() {
		rec.DownloadDate = time.Now().UTC()
	}
	if rec.Platform == "" {
		rec.Platform = models.PlatformYouTube
	}

	query := `
		INSERT INTO download (video_id, title, format, platform, download_date, filesize, thumbnail_url, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err = r.db.Pool.QueryRow(ctx, query,
		truncate(rec.VideoID, maxVideoIDLen),
		truncate(rec.Title, maxTitleLen),
		truncate(rec.Format, maxFormatLen),
		truncate(string(rec.Platform), maxPlatformLen),
		rec.DownloadDate,
		rec.Filesize,
		nullable(truncate(rec.ThumbnailURL, maxThumbLen)),
		rec.Duration,
	).Scan(&rec.ID)

	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// ListRecent returns the n most recent downloads
func (r *Repository) ListRecent(ctx context.Context, n int) (records []*models.HistoryRecord, err error) {
	start := time.Now()
	defer func() { observe("list_recent_downloads", start, err) }()

	query := `
		SELECT id, video_id, title, format, platform, download_date, filesize, thumbnail_url, duration
		FROM download
		ORDER BY download_date DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent downloads: %w", err)
	}
	return scanRecords(rows)
}

// ListAll returns every download, newest first
func (r *Repository) ListAll(ctx context.Context) (records []*models.HistoryRecord, err error) {
	start := time.Now()
	defer func() { observe("list_downloads", start, err) }()

	query := `
		SELECT id, video_id, title, format, platform, download_date, filesize, thumbnail_url, duration
		FROM download
		ORDER BY download_date DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	return scanRecords(rows)
}

// GetDownload retrieves a single history record
func (r *Repository) GetDownload(ctx context.Context, id int64) (rec *models.HistoryRecord, err error) {
	start := time.Now()
	defer func() { observe("get_download", start, err) }()

	query := `
		SELECT id, video_id, title, format, platform, download_date, filesize, thumbnail_url, duration
		FROM download
		WHERE id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// DeleteDownload removes a history record
func (r *Repository) DeleteDownload(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { observe("delete_download", start, err) }()

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM download WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecords(rows pgx.Rows) ([]*models.HistoryRecord, error) {
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var (
			rec       models.HistoryRecord
			platform  *string
			thumbnail *string
		)
		if err := rows.Scan(
			&rec.ID, &rec.VideoID, &rec.Title, &rec.Format, &platform,
			&rec.DownloadDate, &rec.Filesize, &thumbnail, &rec.Duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		rec.Platform = models.PlatformYouTube
		if platform != nil && *platform != "" {
			rec.Platform = models.Platform(*platform)
		}
		if thumbnail != nil {
			rec.ThumbnailURL = *thumbnail
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate downloads: %w", err)
	}

	return records, nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
