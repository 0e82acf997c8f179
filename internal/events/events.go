package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// Queue names
const (
	FlagQueueName       = "tensordrill.flags"
	EscalationQueueName = "tensordrill.escalations"
)

// FlagAccepted is published for every accepted, non-duplicate flag so
// authoring tools can follow review traffic without polling.
type FlagAccepted struct {
	EventID        uuid.UUID           `json:"event_id"`
	FlagID         string              `json:"flag_id"`
	ProblemID      string              `json:"problem_id"`
	ProblemVersion int                 `json:"problem_version"`
	Reason         domain.FlagReason   `json:"reason"`
	TriageAction   domain.TriageAction `json:"triage_action"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

// CardEscalated is published when a flag moves a card to needs_review.
type CardEscalated struct {
	EventID    uuid.UUID                 `json:"event_id"`
	ProblemID  string                    `json:"problem_id"`
	Status     domain.VerificationStatus `json:"status"`
	Blockers   []string                  `json:"blockers"`
	FlagID     string                    `json:"flag_id"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection creates a new RabbitMQ connection
func NewConnection(url string) (*Connection, error) {
	c := &Connection{
		url: url,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes connection and channel
func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareQueues(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect()

	slog.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

// declareQueues creates the necessary queues
func (c *Connection) declareQueues() error {
	// Flag events - durable, consumers may lag behind review traffic
	_, err := c.channel.QueueDeclare(
		FlagQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(86400000), // 24 hour TTL
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare flag queue: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		EscalationQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(86400000),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare escalation queue: %w", err)
	}

	return nil
}

// handleReconnect listens for connection close and attempts to reconnect
func (c *Connection) handleReconnect() {
	notifyClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))

	err := <-notifyClose
	if err == nil {
		return // Normal close
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	slog.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects,
	)

	// Exponential backoff
	for i := 0; i < 10; i++ {
		c.reconnects++
		backoff := time.Duration(1<<i) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		time.Sleep(backoff)

		if err := c.connect(); err != nil {
			slog.Error("reconnection failed", "error", err, "attempt", i+1)
			continue
		}

		slog.Info("reconnected to RabbitMQ", "attempts", i+1)
		return
	}

	slog.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

// Channel returns the current channel (thread-safe)
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes a JSON message to a queue
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// sanitizeURL removes password from URL for logging
func sanitizeURL(url string) string {
	if len(url) > 20 {
		return url[:20] + "..."
	}
	return url
}
