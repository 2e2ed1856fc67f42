package models

import (
	"fmt"
	"time"
)

// HistoryRecord is the persisted trace of a completed download
type HistoryRecord struct {
	ID           int64     `json:"id" db:"id"`
	VideoID      string    `json:"video_id" db:"video_id"`
	Title        string    `json:"title" db:"title"`
	Format       string    `json:"format" db:"format"`
	Platform     Platform  `json:"platform" db:"platform"`
	DownloadDate time.Time `json:"download_date" db:"download_date"`
	Filesize     *int64    `json:"filesize,omitempty" db:"filesize"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Duration     *int      `json:"duration,omitempty" db:"duration"`
}

// NewHistoryRecord builds the record for a completed job
func NewHistoryRecord(job *Job) *HistoryRecord {
	rec := &HistoryRecord{
		VideoID:      job.VideoID,
		Title:        job.Title,
		Format:       fmt.Sprintf("%s (%s)", job.FormatID, job.Ext),
		Platform:     job.Platform,
		DownloadDate: time.Now().UTC(),
		ThumbnailURL: job.Thumbnail,
	}
	if job.Filesize != nil {
		size := *job.Filesize
		rec.Filesize = &size
	}
	if job.Duration > 0 {
		d := int(job.Duration)
		rec.Duration = &d
	}
	return rec
}

// HistoryView adds display helpers to a record
type HistoryView struct {
	*HistoryRecord
	DurationText string `json:"duration_text"`
	FilesizeText string `json:"filesize_text"`
}

// View returns the record with human readable duration and size
func (r *HistoryRecord) View() HistoryView {
	v := HistoryView{HistoryRecord: r, DurationText: "Unknown", FilesizeText: "Unknown"}
	if r.Duration != nil {
		v.DurationText = FormatDuration(*r.Duration)
	}
	if r.Filesize != nil {
		v.FilesizeText = FormatFilesize(*r.Filesize)
	}
	return v
}

// FormatDuration renders seconds as H:MM:SS, or M:SS under an hour
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatFilesize renders a byte count with a binary unit suffix
func FormatFilesize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}
	suffixes := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(suffixes)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", size, suffixes[i])
	}
	return fmt.Sprintf("%.2f %s", value, suffixes[i])
}
