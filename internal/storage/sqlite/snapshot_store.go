package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// SnapshotStore persists pipeline verification decisions so the review queue
// can be seeded across restarts. The queue itself never writes back; flags
// only live in memory, decisions only come from pipeline runs.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite-backed snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SaveDecision persists one pipeline decision (insert or update).
func (s *SnapshotStore) SaveDecision(decision *domain.VerificationDecision) error {
	blockers, err := json.Marshal(emptyIfNil(decision.Blockers))
	if err != nil {
		return fmt.Errorf("marshal blockers: %w", err)
	}
	warnings, err := json.Marshal(emptyIfNil(decision.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO verification_snapshots (problem_id, status, approval_type,
			blockers, warnings, pipeline_version, verified_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(problem_id) DO UPDATE SET
			status=excluded.status, approval_type=excluded.approval_type,
			blockers=excluded.blockers, warnings=excluded.warnings,
			pipeline_version=excluded.pipeline_version,
			verified_at=excluded.verified_at, updated_at=excluded.updated_at`,
		decision.ProblemID, string(decision.Status), decision.ApprovalType,
		string(blockers), string(warnings),
		decision.Metadata.PipelineVersion, decision.Metadata.VerifiedAtISO,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// SaveBatch persists a batch verification snapshot.
func (s *SnapshotStore) SaveBatch(decisions []*domain.VerificationDecision) error {
	for _, decision := range decisions {
		if err := s.SaveDecision(decision); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves the stored record for a problem id.
func (s *SnapshotStore) Get(problemID string) (*domain.VerificationRecord, error) {
	row := s.db.QueryRow(`
		SELECT status, approval_type, blockers
		FROM verification_snapshots WHERE problem_id = ?`, problemID)

	record, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return record, nil
}

// LoadAll returns every stored record keyed by problem id, in the shape the
// review queue's Seed expects.
func (s *SnapshotStore) LoadAll() (map[string]domain.VerificationRecord, error) {
	rows, err := s.db.Query(`
		SELECT problem_id, status, approval_type, blockers
		FROM verification_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	records := make(map[string]domain.VerificationRecord)
	for rows.Next() {
		var problemID string
		var status, approvalType, blockersJSON string
		if err := rows.Scan(&problemID, &status, &approvalType, &blockersJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		var blockers []string
		if err := json.Unmarshal([]byte(blockersJSON), &blockers); err != nil {
			return nil, fmt.Errorf("unmarshal blockers for %s: %w", problemID, err)
		}

		records[problemID] = domain.VerificationRecord{
			Status:       domain.VerificationStatus(status),
			ApprovalType: approvalType,
			Blockers:     blockers,
		}
	}
	return records, rows.Err()
}

// Delete removes the stored record for a problem id.
func (s *SnapshotStore) Delete(problemID string) error {
	result, err := s.db.Exec("DELETE FROM verification_snapshots WHERE problem_id = ?", problemID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*domain.VerificationRecord, error) {
	var status, approvalType, blockersJSON string
	if err := scan(&status, &approvalType, &blockersJSON); err != nil {
		return nil, err
	}

	var blockers []string
	if err := json.Unmarshal([]byte(blockersJSON), &blockers); err != nil {
		return nil, fmt.Errorf("unmarshal blockers: %w", err)
	}

	return &domain.VerificationRecord{
		Status:       domain.VerificationStatus(status),
		ApprovalType: approvalType,
		Blockers:     blockers,
	}, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
