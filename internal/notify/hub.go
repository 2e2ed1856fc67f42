package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const writeWait = 10 * time.Second

// JobSource resolves the current state of a job
type JobSource interface {
	Get(id string) (*models.Job, error)
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(evt models.JobEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(evt)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// Hub fans job events out to websocket subscribers
type Hub struct {
	jobs     JobSource
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub creates a hub reading job snapshots from jobs
func NewHub(jobs JobSource, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		jobs:   jobs,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*client]struct{}),
	}
}

// ServeJob upgrades the request and streams events for jobID until the job
// finishes or the client goes away. The current state is sent first.
func (h *Hub) ServeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := h.jobs.Get(jobID); err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnWithErr("websocket upgrade failed", err)
		return
	}

	c := &client{conn: conn}
	h.subscribe(jobID, c)

	// Subscribed before the snapshot so no transition is lost in between
	job, err := h.jobs.Get(jobID)
	if err != nil {
		h.unsubscribe(jobID, c)
		c.close()
		return
	}
	if err := c.send(job.Event()); err != nil || job.IsFinished() {
		h.unsubscribe(jobID, c)
		c.close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if h.unsubscribe(jobID, c) {
		_ = conn.Close()
	}
}

// Broadcast delivers evt to every subscriber of its job. Subscribers are
// disconnected once the job reaches a terminal status.
func (h *Hub) Broadcast(evt models.JobEvent) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[evt.JobID]))
	for c := range h.subs[evt.JobID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	terminal := evt.Status == models.JobStatusCompleted || evt.Status == models.JobStatusFailed

	for _, c := range clients {
		err := c.send(evt)
		if err != nil || terminal {
			if h.unsubscribe(evt.JobID, c) {
				c.close()
			}
		}
	}
}

// Subscribers returns the number of connections watching jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

func (h *Hub) subscribe(jobID string, c *client) {
	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*client]struct{})
	}
	h.subs[jobID][c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
}

// unsubscribe reports whether c was still registered
func (h *Hub) unsubscribe(jobID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, jobID)
	}
	metrics.WebSocketClients.Dec()
	return true
}
