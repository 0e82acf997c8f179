package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// DecisionRepository is the append-only pipeline decision log backed by
// PostgreSQL. Every pipeline run writes a new row; the latest row per
// problem id is the one the review queue gets seeded from when the SQLite
// snapshot is unavailable.
type DecisionRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository creates a new decision log repository.
func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{pool: pool}
}

// Record appends one pipeline decision to the log.
func (r *DecisionRepository) Record(ctx context.Context, decision *domain.VerificationDecision) error {
	diagnostics, err := json.Marshal(decision.Diagnostics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_decisions
			(id, problem_id, status, approval_type, blockers, warnings,
			 diagnostics, pipeline_version, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		uuid.New(), decision.ProblemID, string(decision.Status), decision.ApprovalType,
		decision.Blockers, decision.Warnings, diagnostics,
		decision.Metadata.PipelineVersion, decision.Metadata.VerifiedAtISO,
		time.Now().UTC(),
	)
	return err
}

// History retrieves decisions for a problem id most-recent-first.
func (r *DecisionRepository) History(ctx context.Context, problemID string, limit int) ([]*domain.VerificationDecision, error) {
	query := `
		SELECT problem_id, status, approval_type, blockers, warnings,
			diagnostics, pipeline_version, verified_at
		FROM verification_decisions WHERE problem_id = $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, problemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.VerificationDecision
	for rows.Next() {
		decision, err := r.scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

// LatestSnapshot returns the latest decision per problem id in the shape the
// review queue's Seed expects.
func (r *DecisionRepository) LatestSnapshot(ctx context.Context) (map[string]domain.VerificationRecord, error) {
	query := `
		SELECT DISTINCT ON (problem_id) problem_id, status, approval_type, blockers
		FROM verification_decisions
		ORDER BY problem_id, created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]domain.VerificationRecord)
	for rows.Next() {
		var problemID, status, approvalType string
		var blockers []string
		if err := rows.Scan(&problemID, &status, &approvalType, &blockers); err != nil {
			return nil, err
		}
		records[problemID] = domain.VerificationRecord{
			Status:       domain.VerificationStatus(status),
			ApprovalType: approvalType,
			Blockers:     blockers,
		}
	}
	return records, rows.Err()
}

func (r *DecisionRepository) scanDecisionRow(rows pgx.Rows) (*domain.VerificationDecision, error) {
	var decision domain.VerificationDecision
	var status string
	var diagnostics []byte

	err := rows.Scan(
		&decision.ProblemID, &status, &decision.ApprovalType,
		&decision.Blockers, &decision.Warnings, &diagnostics,
		&decision.Metadata.PipelineVersion, &decision.Metadata.VerifiedAtISO,
	)
	if err != nil {
		return nil, err
	}

	decision.Status = domain.VerificationStatus(status)
	if err := json.Unmarshal(diagnostics, &decision.Diagnostics); err != nil {
		return nil, err
	}
	return &decision, nil
}
