package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func (f *fakeJobs) Get(id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, assert.AnError
	}
	return job.Clone(), nil
}

func newTestHub(t *testing.T, jobs map[string]*models.Job) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(&fakeJobs{jobs: jobs}, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeJob(w, r, strings.TrimPrefix(r.URL.Path, "/ws/jobs/"))
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHubStreamsUntilTerminal(t *testing.T) {
	hub, server := newTestHub(t, map[string]*models.Job{
		"job-1": {ID: "job-1", Status: models.JobStatusDownloading, Progress: 10},
	})

	conn := dial(t, server, "job-1")

	var evt models.JobEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "job-1", evt.JobID)
	assert.Equal(t, models.JobStatusDownloading, evt.Status)
	assert.Equal(t, 10.0, evt.Progress)
	assert.Equal(t, 1, hub.Subscribers("job-1"))

	hub.Broadcast(models.JobEvent{JobID: "job-1", Status: models.JobStatusDownloading, Progress: 55})
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, 55.0, evt.Progress)

	hub.Broadcast(models.JobEvent{JobID: "job-1", Status: models.JobStatusCompleted, Progress: 100, DownloadURL: "/get_file/job-1"})
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, models.JobStatusCompleted, evt.Status)
	assert.Equal(t, "/get_file/job-1", evt.DownloadURL)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, hub.Subscribers("job-1"))
}

func TestHubFinishedJobClosesAfterSnapshot(t *testing.T) {
	hub, server := newTestHub(t, map[string]*models.Job{
		"done": {ID: "done", Status: models.JobStatusFailed, ErrorMsg: "boom"},
	})

	conn := dial(t, server, "done")

	var evt models.JobEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, models.JobStatusFailed, evt.Status)
	assert.Equal(t, "boom", evt.Error)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers("done"))
}

func TestHubUnknownJob(t *testing.T) {
	_, server := newTestHub(t, map[string]*models.Job{})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubBroadcastIgnoresOtherJobs(t *testing.T) {
	hub, server := newTestHub(t, map[string]*models.Job{
		"a": {ID: "a", Status: models.JobStatusDownloading},
	})

	conn := dial(t, server, "a")
	var evt models.JobEvent
	require.NoError(t, conn.ReadJSON(&evt))

	hub.Broadcast(models.JobEvent{JobID: "b", Status: models.JobStatusCompleted})
	hub.Broadcast(models.JobEvent{JobID: "a", Status: models.JobStatusDownloading, Progress: 42})

	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "a", evt.JobID)
	assert.Equal(t, 42.0, evt.Progress)
}
