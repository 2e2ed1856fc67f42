package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// Webhook event types
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

const userAgent = "mediafetch-Webhook/1.0"

// Event is the JSON body POSTed to every configured endpoint
type Event struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Job       *models.Job `json:"job"`
}

// Service delivers job notifications to configured endpoints
type Service struct {
	urls        []string
	secret      string
	httpClient  *http.Client
	logger      *logging.Logger
	retryDelays []time.Duration
	wg          sync.WaitGroup
}

// NewService creates a new webhook service
func NewService(cfg config.WebhookConfig, logger *logging.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Service{
		urls:   cfg.URLs,
		secret: cfg.Secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:      logger,
		retryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Enabled reports whether any endpoint is configured
func (s *Service) Enabled() bool {
	return len(s.urls) > 0
}

// NotifyJob sends a notification for a job in a terminal state. Delivery is
// asynchronous; failures are logged and counted but never reach the caller.
func (s *Service) NotifyJob(ctx context.Context, job *models.Job) {
	event, ok := eventFor(job)
	if !ok || !s.Enabled() {
		return
	}

	payload, err := json.Marshal(Event{
		Event:     event,
		Timestamp: time.Now(),
		Job:       job,
	})
	if err != nil {
		s.logger.ErrorWithErr("Failed to marshal webhook payload", err)
		return
	}

	for _, url := range s.urls {
		s.wg.Add(1)
		go func(url string) {
			defer s.wg.Done()
			s.deliver(context.WithoutCancel(ctx), url, event, payload)
		}(url)
	}
}

// Wait blocks until in-flight deliveries finish
func (s *Service) Wait() {
	s.wg.Wait()
}

func eventFor(job *models.Job) (string, bool) {
	switch job.Status {
	case models.JobStatusCompleted:
		return EventJobCompleted, true
	case models.JobStatusFailed:
		return EventJobFailed, true
	default:
		return "", false
	}
}

// deliver POSTs payload to url, retrying on transport errors and non-2xx
// responses
func (s *Service) deliver(ctx context.Context, url, event string, payload []byte) {
	deliveryID := uuid.New().String()
	logger := s.logger.WithField("url", url).WithField("event", event)

	for attempt := 0; ; attempt++ {
		err := s.post(ctx, url, event, deliveryID, payload)
		if err == nil {
			metrics.RecordWebhookDelivery(event, "success")
			return
		}

		if attempt >= len(s.retryDelays) {
			metrics.RecordWebhookDelivery(event, "failed")
			logger.WarnWithErr("Webhook delivery failed", err)
			return
		}

		metrics.RecordWebhookDelivery(event, "retry")
		logger.WithField("attempt", attempt+1).Debugf("Webhook delivery failed, retrying: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelays[attempt]):
		}
	}
}

func (s *Service) post(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", generateSignature(payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced for payload with secret
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(generateSignature(payload, secret)), []byte(signature))
}
