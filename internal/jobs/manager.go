// Package jobs runs download jobs against the media provider and tracks
// their state in memory until they are retrieved or evicted.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/artifact"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/platform"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/provider"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// HistoryRecorder persists completed downloads
type HistoryRecorder interface {
	RecordDownload(ctx context.Context, record *models.HistoryRecord) error
}

// Archiver mirrors a finished artifact to long-term storage and returns a
// URL it can be fetched from
type Archiver interface {
	ArchiveArtifact(ctx context.Context, jobID, path, contentType string) (string, error)
}

// Notifier is told about jobs reaching a terminal status
type Notifier interface {
	NotifyJob(ctx context.Context, job *models.Job)
}

// Options configures a Manager
type Options struct {
	// MaxConcurrent bounds the number of provider downloads running at once
	MaxConcurrent int
	AudioQuality  string
	History       HistoryRecorder
	Archiver      Archiver
	Notifier      Notifier
	Logger        *logging.Logger
}

// Download is a completed artifact ready to be served
type Download struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

type entry struct {
	job  *models.Job
	done chan struct{}
}

// Manager owns the job table and the download pool
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*entry

	provider     provider.Provider
	store        *artifact.Store
	history      HistoryRecorder
	archiver     Archiver
	notifier     Notifier
	logger       *logging.Logger
	audioQuality string

	sem     chan struct{}
	running int64
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	updateMu sync.RWMutex
	onUpdate func(models.JobEvent)
}

// NewManager creates a job manager writing artifacts into store
func NewManager(p provider.Provider, store *artifact.Store, opts Options) *Manager {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "192"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		jobs:         make(map[string]*entry),
		provider:     p,
		store:        store,
		history:      opts.History,
		archiver:     opts.Archiver,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		audioQuality: opts.AudioQuality,
		sem:          make(chan struct{}, opts.MaxConcurrent),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetUpdateCallback registers fn to receive every job state change
func (m *Manager) SetUpdateCallback(fn func(models.JobEvent)) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.onUpdate = fn
}

// Submit validates url, resolves the requested format and starts the
// download in the background. The returned job is in the downloading state.
func (m *Manager) Submit(ctx context.Context, url, formatID string) (*models.Job, error) {
	if !platform.Validate(url) {
		return nil, fmt.Errorf("%w: %s", ErrValidation, url)
	}
	if formatID == "" {
		return nil, fmt.Errorf("%w: missing format", ErrValidation)
	}
	info, err := m.provider.FetchMetadata(ctx, url)
	if err != nil {
		metrics.RecordError("jobs", "extraction")
		if errors.Is(err, ErrExtraction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	p := buildSelector(formatID, info, m.audioQuality)
	id := uuid.New().String()

	job := &models.Job{
		ID:         id,
		URL:        url,
		FormatID:   formatID,
		Selector:   p.Selector,
		Platform:   platform.Classify(url),
		Title:      info.Title,
		VideoID:    info.ID,
		Thumbnail:  info.Thumbnail,
		Duration:   info.Duration,
		OutputPath: m.store.Path(id, p.Ext),
		Ext:        p.Ext,
		Status:     models.JobStatusDownloading,
		CreatedAt:  time.Now().UTC(),
	}

	e := &entry{job: job, done: make(chan struct{})}
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.jobs[id] = e
	m.wg.Add(1)
	tracked := len(m.jobs)
	m.mu.Unlock()

	metrics.RecordJobCreated(string(job.Platform))
	metrics.UpdateJobMetrics(int(atomic.LoadInt64(&m.running)), tracked)
	m.logger.LogJobEvent(id, "submitted", job.Status, map[string]interface{}{
		"format_id": formatID,
		"selector":  p.Selector,
		"platform":  string(job.Platform),
	})

	snapshot := job.Clone()
	m.emit(snapshot)

	go m.run(e, p)

	return snapshot, nil
}

// run executes one job on the bounded pool
func (m *Manager) run(e *entry, p plan) {
	defer m.wg.Done()

	id := e.job.ID
	logger := m.logger.WithJobID(id).WithPlatform(string(e.job.Platform))

	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.fail(e, ErrShutdown)
		return
	}
	defer func() { <-m.sem }()

	running := atomic.AddInt64(&m.running, 1)
	metrics.UpdateJobMetrics(int(running), m.Len())
	defer func() {
		metrics.UpdateJobMetrics(int(atomic.AddInt64(&m.running, -1)), m.Len())
	}()

	span, ctx := tracing.StartSpan(m.ctx, "jobs.download")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "job_id", id)
	tracing.SetTag(span, "selector", p.Selector)

	m.mu.Lock()
	started := time.Now().UTC()
	e.job.StartedAt = &started
	url := e.job.URL
	m.mu.Unlock()

	req := &provider.DownloadRequest{
		URL:            url,
		Selector:       p.Selector,
		OutputTemplate: m.store.Template(id),
		MergeFormat:    p.MergeFormat,
		ExtractAudio:   p.ExtractAudio,
		AudioFormat:    p.AudioFormat,
		AudioQuality:   p.AudioQuality,
		Progress: func(pr provider.Progress) {
			m.progress(e, pr)
			logger.LogDownloadProgress(id, pr.Percent(), pr.DownloadedBytes, pr.TotalBytes)
		},
	}

	if err := m.provider.Download(ctx, req); err != nil {
		tracing.LogError(span, err)
		if !errors.Is(err, ErrDownload) {
			err = fmt.Errorf("%w: %v", ErrDownload, err)
		}
		m.fail(e, err)
		return
	}

	path, err := m.store.Locate(id, p.Ext)
	if err != nil {
		tracing.LogError(span, err)
		m.fail(e, fmt.Errorf("%w: %v", ErrDownload, err))
		return
	}

	size, err := m.store.Size(path)
	var filesize *int64
	if err == nil {
		filesize = &size
	} else {
		logger.WarnWithErr("Falling back to provider size estimate", err)
		filesize = p.Estimate
	}

	m.mu.Lock()
	e.job.OutputPath = path
	e.job.Ext = artifact.ExtOf(path)
	e.job.Filesize = filesize
	snapshot := e.job.Clone()
	m.mu.Unlock()

	if m.archiver != nil {
		archiveURL, err := m.archiver.ArchiveArtifact(ctx, id, path, artifact.ContentType(snapshot.Ext))
		if err != nil {
			logger.WarnWithErr("Failed to archive artifact", err)
			metrics.RecordError("jobs", "archive")
		} else {
			m.mu.Lock()
			e.job.ArchiveURL = archiveURL
			snapshot = e.job.Clone()
			m.mu.Unlock()
		}
	}

	if m.history != nil {
		if err := m.history.RecordDownload(ctx, models.NewHistoryRecord(snapshot)); err != nil {
			tracing.LogError(span, err)
			m.fail(e, fmt.Errorf("failed to record download history: %w", err))
			return
		}
	}

	if filesize != nil {
		metrics.RecordArtifact(string(snapshot.Platform), *filesize)
	}
	m.complete(e)
}

func (m *Manager) progress(e *entry, pr provider.Progress) {
	pct := pr.Percent()

	m.mu.Lock()
	if e.job.IsFinished() || pct <= e.job.Progress {
		m.mu.Unlock()
		return
	}
	e.job.Progress = pct
	snapshot := e.job.Clone()
	m.mu.Unlock()

	m.emit(snapshot)
}

func (m *Manager) complete(e *entry) {
	m.mu.Lock()
	now := time.Now().UTC()
	e.job.Status = models.JobStatusCompleted
	e.job.Progress = 100
	e.job.CompletedAt = &now
	snapshot := e.job.Clone()
	m.mu.Unlock()

	m.finish(e, snapshot)
}

func (m *Manager) fail(e *entry, err error) {
	m.mu.Lock()
	now := time.Now().UTC()
	e.job.Status = models.JobStatusFailed
	e.job.ErrorMsg = err.Error()
	e.job.CompletedAt = &now
	snapshot := e.job.Clone()
	m.mu.Unlock()

	metrics.RecordError("jobs", "download")
	m.logger.WithJobID(snapshot.ID).ErrorWithErr("Download failed", err)
	m.finish(e, snapshot)
}

// finish publishes the terminal state and releases waiters
func (m *Manager) finish(e *entry, snapshot *models.Job) {
	var elapsed float64
	if snapshot.StartedAt != nil && snapshot.CompletedAt != nil {
		elapsed = snapshot.CompletedAt.Sub(*snapshot.StartedAt).Seconds()
	}
	metrics.RecordJobCompleted(snapshot.Status, string(snapshot.Platform), elapsed)
	m.logger.LogJobEvent(snapshot.ID, "finished", snapshot.Status, map[string]interface{}{
		"duration_seconds": elapsed,
	})

	close(e.done)
	m.emit(snapshot)

	if m.notifier != nil {
		m.notifier.NotifyJob(m.ctx, snapshot)
	}
}

func (m *Manager) emit(job *models.Job) {
	m.updateMu.RLock()
	fn := m.onUpdate
	m.updateMu.RUnlock()
	if fn != nil {
		fn(job.Event())
	}
}

// Wait blocks until the job finishes or ctx is done
func (m *Manager) Wait(ctx context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return m.Get(id)
}

// Get returns a copy of the job
func (m *Manager) Get(id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.job.Clone(), nil
}

// List returns copies of all tracked jobs, newest first
func (m *Manager) List() []*models.Job {
	m.mu.RLock()
	out := make([]*models.Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		out = append(out, e.job.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked jobs
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Artifact resolves the file of a completed job. The filename is derived
// from the title and platform captured at submission.
func (m *Manager) Artifact(id string) (*Download, error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusCompleted:
	case models.JobStatusFailed:
		return nil, fmt.Errorf("%w: download failed: %s", ErrNotReady, job.ErrorMsg)
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotReady, job.Status)
	}

	path := job.OutputPath
	if !m.store.Exists(path) {
		path, err = m.store.Locate(id, job.Ext)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
		}
	}

	size, err := m.store.Size(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	ext := artifact.ExtOf(path)
	return &Download{
		Path:        path,
		Filename:    artifact.Filename(job.Platform, job.Title, ext),
		ContentType: artifact.ContentType(ext),
		Size:        size,
	}, nil
}

// Evict drops finished jobs completed before the cutoff and deletes their
// files. It returns the number of jobs removed.
func (m *Manager) Evict(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	m.mu.Lock()
	var expired []string
	for id, e := range m.jobs {
		if e.job.IsFinished() && e.job.CompletedAt != nil && e.job.CompletedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(m.jobs, id)
		}
	}
	tracked := len(m.jobs)
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.store.Remove(id); err != nil {
			m.logger.WithJobID(id).WarnWithErr("Failed to remove artifact", err)
		}
	}

	if len(expired) > 0 {
		metrics.RecordEviction(len(expired))
		m.logger.Infof("Evicted %d expired downloads", len(expired))
	}
	metrics.UpdateJobMetrics(int(atomic.LoadInt64(&m.running)), tracked)
	return len(expired)
}

// StartJanitor evicts jobs older than retention every interval until
// Shutdown. A zero retention or interval disables it.
func (m *Manager) StartJanitor(interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.Evict(retention)
			}
		}
	}()
}

// Shutdown cancels in-flight downloads and waits for workers to exit
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain downloads: %w", ctx.Err())
	}
}
