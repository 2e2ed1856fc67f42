package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const (
	HistoryQueueName = "download_history"
	ExchangeName     = "mediafetch"
)

// HistoryEvent is published when a download completes and consumed by the
// worker that owns the history table
type HistoryEvent struct {
	Record *models.HistoryRecord `json:"record"`
}

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
	logger  *logging.Logger
}

// URL builds the AMQP connection string for cfg
func URL(cfg config.QueueConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)
}

// New creates a new queue client and declares the history topology
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	conn, err := amqp.Dial(URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	q := &Queue{conn: conn, channel: channel, logger: logger}

	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	// Declare exchange
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := q.SetupDeadLetterQueue(); err != nil {
		return err
	}

	// Declare queue; rejected messages go to the dead letter exchange
	_, err = q.channel.QueueDeclare(
		HistoryQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    DeadLetterExchangeName,
			"x-dead-letter-routing-key": DeadLetterQueueName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = q.channel.QueueBind(
		HistoryQueueName,
		HistoryQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// RecordDownload publishes a history event. It satisfies the job manager's
// history recorder so the API can hand history off to the worker.
func (q *Queue) RecordDownload(ctx context.Context, rec *models.HistoryRecord) error {
	return q.publish(ctx, ExchangeName, HistoryQueueName, &HistoryEvent{Record: rec}, nil, "")
}

func (q *Queue) publish(ctx context.Context, exchange, key string, evt *HistoryEvent, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish history event: %w", err)
	}

	return nil
}

// ConsumeHistory starts consuming history events. Failed events are retried
// with backoff and end up in the dead letter queue after MaxRetries.
func (q *Queue) ConsumeHistory(ctx context.Context, handler func(context.Context, *models.HistoryRecord) error) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		HistoryQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, *models.HistoryRecord) error) {
	evt, err := decodeEvent(msg.Body)
	if err != nil {
		q.logger.WarnWithErr("Dropping malformed history event", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := handler(ctx, evt.Record); err != nil {
		retries := retryCount(msg.Headers)
		q.logger.WithField("retry", retries).WarnWithErr("Failed to record history event", err)
		if err := q.PublishToRetryQueue(ctx, evt, retries, err.Error()); err != nil {
			q.logger.ErrorWithErr("Failed to schedule history retry", err)
			_ = msg.Nack(false, true)
			return
		}
	}

	_ = msg.Ack(false)
}

func decodeEvent(body []byte) (*HistoryEvent, error) {
	var evt HistoryEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history event: %w", err)
	}
	if evt.Record == nil {
		return nil, fmt.Errorf("history event has no record")
	}
	return &evt, nil
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(HistoryQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
