package sqlite

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

func testDecision(problemID string, status domain.VerificationStatus) *domain.VerificationDecision {
	decision := &domain.VerificationDecision{
		ProblemID: problemID,
		Status:    status,
		Metadata: domain.DecisionMetadata{
			PipelineVersion: "1.0.0",
		},
	}
	if status == domain.StatusVerified {
		decision.ApprovalType = domain.ApprovalTypeAutoProvisional
		decision.Metadata.VerifiedAtISO = "2026-08-31T12:00:00Z"
	} else {
		decision.Blockers = []string{"SCHEMA_INVALID: missing required field: prompt"}
	}
	return decision
}

func TestSnapshotStore_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	if err := store.SaveDecision(testDecision("matmul-001", domain.StatusVerified)); err != nil {
		t.Fatalf("SaveDecision() error = %v", err)
	}

	record, err := store.Get("matmul-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Status != domain.StatusVerified {
		t.Errorf("Status = %q; want verified", record.Status)
	}
	if record.ApprovalType != domain.ApprovalTypeAutoProvisional {
		t.Errorf("ApprovalType = %q; want auto_provisional", record.ApprovalType)
	}
	if len(record.Blockers) != 0 {
		t.Errorf("Blockers = %v; want empty", record.Blockers)
	}
}

func TestSnapshotStore_Get_NotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	_, err := store.Get("nope")
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("Get() error = %v; want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotStore_Save_Upserts(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	if err := store.SaveDecision(testDecision("matmul-001", domain.StatusVerified)); err != nil {
		t.Fatalf("SaveDecision() error = %v", err)
	}
	if err := store.SaveDecision(testDecision("matmul-001", domain.StatusNeedsReview)); err != nil {
		t.Fatalf("second SaveDecision() error = %v", err)
	}

	record, err := store.Get("matmul-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Status != domain.StatusNeedsReview {
		t.Errorf("Status = %q; want needs_review", record.Status)
	}
	if len(record.Blockers) != 1 {
		t.Errorf("Blockers = %v; want 1 entry", record.Blockers)
	}
}

func TestSnapshotStore_LoadAll(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	decisions := []*domain.VerificationDecision{
		testDecision("matmul-001", domain.StatusVerified),
		testDecision("softmax-002", domain.StatusNeedsReview),
		testDecision("conv2d-003", domain.StatusRejected),
	}
	if err := store.SaveBatch(decisions); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	records, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("LoadAll() returned %d records; want 3", len(records))
	}
	if records["matmul-001"].Status != domain.StatusVerified {
		t.Errorf("matmul-001 status = %q; want verified", records["matmul-001"].Status)
	}
	if records["conv2d-003"].Status != domain.StatusRejected {
		t.Errorf("conv2d-003 status = %q; want rejected", records["conv2d-003"].Status)
	}
}

func TestSnapshotStore_LoadAll_SeedsQueueShape(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	if err := store.SaveDecision(testDecision("softmax-002", domain.StatusNeedsReview)); err != nil {
		t.Fatalf("SaveDecision() error = %v", err)
	}

	records, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	record := records["softmax-002"]
	if record.Blockers[0] != "SCHEMA_INVALID: missing required field: prompt" {
		t.Errorf("blocker = %q; want schema blocker", record.Blockers[0])
	}
}

func TestSnapshotStore_Delete(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db)

	if err := store.SaveDecision(testDecision("matmul-001", domain.StatusVerified)); err != nil {
		t.Fatalf("SaveDecision() error = %v", err)
	}
	if err := store.Delete("matmul-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("matmul-001"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("second Delete() error = %v; want ErrSnapshotNotFound", err)
	}
}
