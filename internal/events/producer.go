package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/review"
)

// Producer publishes review lifecycle events
type Producer struct {
	conn   *Connection
	logger *slog.Logger
}

// NewProducer creates a new event producer
func NewProducer(conn *Connection, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{conn: conn, logger: logger}
}

// PublishFlagAccepted emits a FlagAccepted event for an accepted flag.
func (p *Producer) PublishFlagAccepted(ctx context.Context, flag *domain.FlagRecord, action domain.TriageAction) error {
	event := FlagAccepted{
		EventID:        uuid.New(),
		FlagID:         flag.FlagID,
		ProblemID:      flag.ProblemID,
		ProblemVersion: flag.ProblemVersion,
		Reason:         flag.Reason,
		TriageAction:   action,
		SubmittedAt:    flag.SubmittedAt,
	}

	if err := p.conn.PublishJSON(ctx, FlagQueueName, event); err != nil {
		return err
	}

	p.logger.Info("published flag accepted event",
		"event_id", event.EventID,
		"flag_id", flag.FlagID,
		"problem_id", flag.ProblemID,
	)
	return nil
}

// PublishCardEscalated emits a CardEscalated event after a flag pushes a
// card into needs_review.
func (p *Producer) PublishCardEscalated(ctx context.Context, problemID, flagID string, record domain.VerificationRecord) error {
	event := CardEscalated{
		EventID:    uuid.New(),
		ProblemID:  problemID,
		Status:     record.Status,
		Blockers:   append([]string(nil), record.Blockers...),
		FlagID:     flagID,
		OccurredAt: time.Now().UTC(),
	}

	if err := p.conn.PublishJSON(ctx, EscalationQueueName, event); err != nil {
		return err
	}

	p.logger.Info("published card escalated event",
		"event_id", event.EventID,
		"problem_id", problemID,
		"flag_id", flagID,
	)
	return nil
}

// PublishFromResult inspects a flag submission result and emits the matching
// events. Duplicates and rate-limited submissions produce no events.
func (p *Producer) PublishFromResult(ctx context.Context, q *review.Queue, input review.SubmitFlagInput, result *review.SubmitFlagResult) {
	if !result.Accepted || result.Deduplicated {
		return
	}

	flag := q.FlagByID(result.FlagID)
	if flag == nil {
		return
	}

	if err := p.PublishFlagAccepted(ctx, flag, result.TriageAction); err != nil {
		p.logger.Error("failed to publish flag accepted event",
			"flag_id", result.FlagID, "error", err)
	}

	if result.TriageAction != domain.TriageStatusUpdated {
		return
	}

	details := q.GetVerificationStatusDetails(input.ProblemID)
	if err := p.PublishCardEscalated(ctx, input.ProblemID, result.FlagID, details); err != nil {
		p.logger.Error("failed to publish card escalated event",
			"problem_id", input.ProblemID, "error", err)
	}
}
