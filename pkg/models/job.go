package models

import (
	"time"
)

// Job represents a single download request tracked in memory
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	FormatID    string     `json:"format_id"`
	Selector    string     `json:"selector"`
	Platform    Platform   `json:"platform"`
	Title       string     `json:"title"`
	VideoID     string     `json:"video_id"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Duration    float64    `json:"duration,omitempty"`
	OutputPath  string     `json:"-"`
	Ext         string     `json:"ext"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	Filesize    *int64     `json:"filesize,omitempty"`
	ErrorMsg    string     `json:"error_msg,omitempty"`
	ArchiveURL  string     `json:"archive_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobStatus constants
const (
	JobStatusDownloading = "downloading"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
)

// IsFinished reports whether the job reached a terminal state
func (j *Job) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Clone returns a copy that is safe to hand out to readers
func (j *Job) Clone() *Job {
	c := *j
	if j.Filesize != nil {
		size := *j.Filesize
		c.Filesize = &size
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobEvent is pushed to subscribers whenever a job changes
type JobEvent struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	Error       string    `json:"error,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event builds the notification for the job's current state
func (j *Job) Event() JobEvent {
	evt := JobEvent{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Error:     j.ErrorMsg,
		Timestamp: time.Now(),
	}
	if j.Status == JobStatusCompleted {
		evt.DownloadURL = "/get_file/" + j.ID
	}
	return evt
}
