package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DeadLetterQueueName    = "download_history_dlq"
	DeadLetterExchangeName = "mediafetch_dlq"
	RetryQueueName         = "download_history_retry"
	MaxRetries             = 5
)

// SetupDeadLetterQueue sets up the dead letter and retry queues
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Expired retry messages flow back into the history queue
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": HistoryQueueName,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishToRetryQueue schedules evt for another attempt, or moves it to the
// dead letter queue once MaxRetries is reached
func (q *Queue) PublishToRetryQueue(ctx context.Context, evt *HistoryEvent, retries int, reason string) error {
	if retries >= MaxRetries {
		return q.PublishToDeadLetterQueue(ctx, evt, "max retries exceeded: "+reason)
	}

	headers := amqp.Table{
		"x-retry-count": int32(retries + 1),
	}

	delay := calculateBackoffDelay(retries)
	if err := q.publish(ctx, "", RetryQueueName, evt, headers, fmt.Sprintf("%d", delay.Milliseconds())); err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	q.logger.Infof("History event for %s queued for retry #%d in %v", evt.Record.VideoID, retries+1, delay)
	return nil
}

// PublishToDeadLetterQueue parks an event that cannot be recorded
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, evt *HistoryEvent, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}

	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, evt, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.logger.Warnf("History event for %s moved to dead letter queue: %s", evt.Record.VideoID, reason)
	return nil
}

// retryCount reads the x-retry-count header in whichever integer type the
// broker decoded it as
func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}

// calculateBackoffDelay calculates exponential backoff delay
func calculateBackoffDelay(retries int) time.Duration {
	// Exponential backoff: 30s, 1min, 2min, 4min, 8min
	baseDelay := 30 * time.Second
	delay := baseDelay * (1 << retries) // 2^retries

	// Cap at 15 minutes
	if delay > 15*time.Minute {
		delay = 15 * time.Minute
	}

	return delay
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
