package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EscalationHandler processes card escalation events, typically to notify
// authors or open a work item in an authoring tool.
type EscalationHandler func(ctx context.Context, event *CardEscalated) error

// Consumer consumes escalation events from the queue
type Consumer struct {
	conn       *Connection
	handler    EscalationHandler
	workers    int
	prefetch   int
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  2,
		Prefetch: 1, // Process one at a time per worker for fairness
	}
}

// NewConsumer creates a new escalation consumer
func NewConsumer(conn *Connection, handler EscalationHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	// Set QoS (prefetch)
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		EscalationQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting escalation consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	slog.Info("worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage handles a single message
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var event CardEscalated
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal escalation event",
			"worker_id", workerID,
			"error", err,
		)
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	slog.Info("processing escalation",
		"worker_id", workerID,
		"event_id", event.EventID,
		"problem_id", event.ProblemID,
	)

	eventCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.handler(eventCtx, &event); err != nil {
		slog.Error("escalation handling failed",
			"worker_id", workerID,
			"event_id", event.EventID,
			"error", err,
			"duration", time.Since(start),
		)
		// Requeue once; the broker drops it on the second failure
		_ = msg.Reject(!msg.Redelivered)
		return
	}

	slog.Info("escalation handled",
		"worker_id", workerID,
		"event_id", event.EventID,
		"duration", time.Since(start),
	)

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("escalation consumer stopped")
}
