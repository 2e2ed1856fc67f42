package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// Health levels
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

const (
	dlqCritical       = 100
	queueWarning      = 1000
	failureRateAlert  = 0.1
	defaultCollection = 10 * time.Second
)

// Metrics holds system metrics
type Metrics struct {
	QueueDepth         int       `json:"queue_depth"`
	DLQDepth           int       `json:"dlq_depth"`
	ActiveJobs         int       `json:"active_jobs"`
	TotalJobs          int64     `json:"total_jobs"`
	CompletedJobs      int64     `json:"completed_jobs"`
	FailedJobs         int64     `json:"failed_jobs"`
	AverageWaitTime    float64   `json:"average_wait_time_seconds"`
	AverageProcessTime float64   `json:"average_process_time_seconds"`
	LastUpdated        time.Time `json:"last_updated"`
}

// JobLister exposes the tracked jobs
type JobLister interface {
	List() []*models.Job
}

// QueueProvider defines the interface for queue metrics
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// Monitor periodically summarizes job and queue state
type Monitor struct {
	metrics       *Metrics
	mu            sync.RWMutex
	jobs          JobLister
	queueProvider QueueProvider
	logger        *logging.Logger
}

// NewMonitor creates a new monitoring service. queueProvider may be nil
// when history is written directly.
func NewMonitor(jobs JobLister, queueProvider QueueProvider, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		metrics: &Metrics{
			LastUpdated: time.Now(),
		},
		jobs:          jobs,
		queueProvider: queueProvider,
		logger:        logger,
	}
}

// Start collects metrics every interval until ctx is done
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultCollection
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(); err != nil {
					m.logger.WarnWithErr("Failed to update metrics", err)
				}
			}
		}
	}()
}

// Refresh recomputes the metrics now. Job figures are updated even when the
// queue cannot be inspected.
func (m *Monitor) Refresh() error {
	next := summarize(m.jobs.List())

	var qerr error
	if m.queueProvider != nil {
		depth, err := m.queueProvider.GetQueueDepth()
		if err != nil {
			qerr = fmt.Errorf("failed to get queue depth: %w", err)
		}
		next.QueueDepth = depth

		dlq, err := m.queueProvider.GetDLQDepth()
		if err != nil && qerr == nil {
			qerr = fmt.Errorf("failed to get DLQ depth: %w", err)
		}
		next.DLQDepth = dlq
	}

	m.mu.Lock()
	m.metrics = next
	m.mu.Unlock()

	return qerr
}

func summarize(jobs []*models.Job) *Metrics {
	out := &Metrics{LastUpdated: time.Now()}

	var waitSum, processSum float64
	var waitN, processN int
	for _, job := range jobs {
		out.TotalJobs++
		switch job.Status {
		case models.JobStatusCompleted:
			out.CompletedJobs++
		case models.JobStatusFailed:
			out.FailedJobs++
		default:
			out.ActiveJobs++
		}

		if job.StartedAt != nil {
			waitSum += job.StartedAt.Sub(job.CreatedAt).Seconds()
			waitN++
			if job.CompletedAt != nil {
				processSum += job.CompletedAt.Sub(*job.StartedAt).Seconds()
				processN++
			}
		}
	}

	if waitN > 0 {
		out.AverageWaitTime = waitSum / float64(waitN)
	}
	if processN > 0 {
		out.AverageProcessTime = processSum / float64(processN)
	}
	return out
}

// GetMetrics returns current system metrics
func (m *Monitor) GetMetrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Create a copy to avoid race conditions
	metrics := *m.metrics
	return &metrics
}

// GetSystemHealth returns overall system health
func (m *Monitor) GetSystemHealth() string {
	metrics := m.GetMetrics()

	if metrics.DLQDepth > dlqCritical {
		return HealthCritical
	}
	if metrics.QueueDepth > queueWarning {
		return HealthWarning
	}
	if metrics.TotalJobs > 0 && failureRate(metrics) > failureRateAlert {
		return HealthWarning
	}

	return HealthHealthy
}

// GetAlerts returns current system alerts
func (m *Monitor) GetAlerts() []string {
	metrics := m.GetMetrics()

	var alerts []string

	if metrics.DLQDepth > dlqCritical {
		alerts = append(alerts, fmt.Sprintf("High DLQ depth: %d messages", metrics.DLQDepth))
	}

	if metrics.QueueDepth > queueWarning {
		alerts = append(alerts, fmt.Sprintf("High queue depth: %d history events pending", metrics.QueueDepth))
	}

	if metrics.TotalJobs > 0 {
		if rate := failureRate(metrics); rate > failureRateAlert {
			alerts = append(alerts, fmt.Sprintf("High failure rate: %.1f%%", rate*100))
		}
	}

	return alerts
}

func failureRate(m *Metrics) float64 {
	return float64(m.FailedJobs) / float64(m.TotalJobs)
}
