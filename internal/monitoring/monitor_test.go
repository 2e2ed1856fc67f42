package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

type staticJobs []*models.Job

func (s staticJobs) List() []*models.Job { return s }

type fakeQueue struct {
	depth, dlq int
	err        error
}

func (f fakeQueue) GetQueueDepth() (int, error) { return f.depth, f.err }
func (f fakeQueue) GetDLQDepth() (int, error)   { return f.dlq, f.err }

func job(status string, wait, process time.Duration) *models.Job {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(wait)
	j := &models.Job{Status: status, CreatedAt: created, StartedAt: &started}
	if status != models.JobStatusDownloading {
		done := started.Add(process)
		j.CompletedAt = &done
	}
	return j
}

func TestRefreshSummarizesJobs(t *testing.T) {
	jobs := staticJobs{
		job(models.JobStatusCompleted, 2*time.Second, 10*time.Second),
		job(models.JobStatusCompleted, 4*time.Second, 20*time.Second),
		job(models.JobStatusDownloading, 0, 0),
	}

	m := NewMonitor(jobs, nil, nil)
	require.NoError(t, m.Refresh())

	metrics := m.GetMetrics()
	assert.Equal(t, int64(3), metrics.TotalJobs)
	assert.Equal(t, int64(2), metrics.CompletedJobs)
	assert.Equal(t, 1, metrics.ActiveJobs)
	assert.Equal(t, 2.0, metrics.AverageWaitTime)
	assert.Equal(t, 15.0, metrics.AverageProcessTime)
	assert.Equal(t, HealthHealthy, m.GetSystemHealth())
	assert.Empty(t, m.GetAlerts())
}

func TestHealthFromFailuresAndQueue(t *testing.T) {
	jobs := staticJobs{
		job(models.JobStatusFailed, time.Second, time.Second),
		job(models.JobStatusCompleted, time.Second, time.Second),
	}

	m := NewMonitor(jobs, fakeQueue{depth: 5, dlq: 150}, nil)
	require.NoError(t, m.Refresh())

	assert.Equal(t, HealthCritical, m.GetSystemHealth())
	alerts := m.GetAlerts()
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "DLQ")
	assert.Contains(t, alerts[1], "50.0%")
}

func TestRefreshQueueError(t *testing.T) {
	m := NewMonitor(staticJobs{job(models.JobStatusCompleted, 0, time.Second)}, fakeQueue{err: errors.New("closed")}, nil)

	assert.Error(t, m.Refresh())
	assert.Equal(t, int64(1), m.GetMetrics().TotalJobs)
}
