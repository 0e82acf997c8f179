package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/card"
	"github.com/felixgeelhaar/tensordrill/internal/config"
	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/review"
	"github.com/felixgeelhaar/tensordrill/internal/schema"
	"github.com/felixgeelhaar/tensordrill/internal/verify"
)

// stubRuntime reports success for any reference solution without a sandbox.
type stubRuntime struct{}

func (s *stubRuntime) Run(ctx context.Context, problemID, code string) (*domain.RunResult, error) {
	return &domain.RunResult{
		OK:     true,
		Output: domain.Matrix{{1, 0}, {0, 1}},
		TestCaseResults: []domain.TestCaseResult{
			{ID: "t1", Passed: true},
		},
	}, nil
}

func (s *stubRuntime) RunAgainstFixture(ctx context.Context, problemID, code string, fixture *domain.Fixture) (*domain.RunResult, error) {
	return s.Run(ctx, problemID, code)
}

func testCard() *domain.CardSpecification {
	tolerance := 1e-6
	return &domain.CardSpecification{
		ID:                 "tensors/identity",
		ProblemVersion:     1,
		Title:              "Identity passthrough",
		Goal:               "Reproduce PyTorch identity semantics for a 2x2 input",
		LearningObjective:  "Understand elementwise passthrough",
		ConceptDescription: "Returns its input unchanged",
		OutputContract: domain.OutputContract{
			Shape:     "[2, 2]",
			Semantics: "output equals input",
		},
		PassCriteria: domain.PassCriteria{
			DeterminismMode: "deterministic",
			Checks: []domain.PassCheck{
				{Mode: domain.CheckModeShapeGuard, Scope: domain.CheckScopeBoth, Oracle: domain.OracleReferenceSolution, Description: "shape preserved"},
				{Mode: domain.CheckModeNumericTolerance, Scope: domain.CheckScopeHidden, Oracle: domain.OracleReferenceSolution, Description: "values match", Tolerance: &tolerance},
			},
		},
		EvaluationArtifacts: domain.EvaluationArtifacts{
			ReferenceSolution: domain.ReferenceSolutionSpec{
				Path:         "solutions/identity.py",
				FunctionName: "identity",
			},
			VisibleTests: []domain.TestDescriptor{{ID: "t1", Name: "basic"}},
			HiddenTests:  []domain.TestDescriptor{{ID: "h1", Name: "hidden"}},
		},
		Hints: domain.HintTiers{
			Tier1: "Think about what the output must preserve.",
			Tier2: "Every element keeps its position and value.",
			Tier3: "Walk the input and copy each element across unchanged.",
		},
		FidelityTarget: domain.FidelityTarget{
			PaperAnchor:            "https://example.com/identity",
			RequiredSemanticChecks: []string{"values match", "shape preserved"},
		},
		Metadata: domain.AuthoringMetadata{Author: "test"},
		QualityScorecard: domain.QualityScorecard{
			Clarity: 4, Difficulty: 3, Coverage: 4, Fidelity: 4, HintQuality: 4,
		},
	}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	registry := card.NewRegistry(card.NewLoader(t.TempDir()))

	spec := testCard()
	registry.RegisterCard(spec)
	registry.RegisterFixture(spec.ID, &domain.Fixture{
		FunctionName:   "identity",
		Inputs:         map[string]domain.Matrix{"x": {{1, 0}, {0, 1}}},
		InputOrder:     []string{"x"},
		ExpectedOutput: domain.Matrix{{1, 0}, {0, 1}},
		TestCases: []domain.FixtureCase{
			{ID: "t1", Name: "basic", ExpectedOutput: domain.Matrix{{1, 0}, {0, 1}}},
		},
	})
	registry.RegisterReferenceSolution(spec.ID, "def identity(x):\n    return x\n")

	pipeline := verify.NewPipeline(verify.Dependencies{
		Schema:     schema.NewValidator(),
		Runtime:    &stubRuntime{},
		References: registry,
		Fixtures:   registry,
	})

	cfg, _ := config.Load()

	return NewServer(ServerConfig{
		Config:   cfg,
		Pipeline: pipeline,
		Registry: registry,
		Queue:    review.NewQueue(),
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v; want healthy", body["status"])
	}
}

func TestHandleSubmitFlag(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
		"problem_id": "tensors/identity",
		"reason":     "bad_hint",
		"notes":      "tier 3 gives away the loop",
		"session_id": "sess-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var body submitFlagResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Accepted {
		t.Errorf("flag not accepted: %s", body.Message)
	}
	if body.FlagID != "flag_00001" {
		t.Errorf("FlagID = %q; want flag_00001", body.FlagID)
	}
}

func TestHandleSubmitFlag_InvalidReason(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
		"problem_id": "tensors/identity",
		"reason":     "vibes",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestHandleSubmitFlag_RateLimited(t *testing.T) {
	server := setupTestServer(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
			"problem_id": "tensors/identity",
			"reason":     "ambiguous_prompt",
			"notes":      fmt.Sprintf("issue number %d", i),
			"session_id": "sess-1",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("flag %d status = %d; want 200", i, rec.Code)
		}
	}

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
		"problem_id": "tensors/identity",
		"reason":     "ambiguous_prompt",
		"notes":      "one too many",
		"session_id": "sess-1",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", rec.Code)
	}
}

func TestHandleVerify(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/verify/tensors/identity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "verified" {
		t.Errorf("status = %v; want verified (body: %s)", body["status"], rec.Body.String())
	}
}

func TestHandleVerify_UnknownCard(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/verify/tensors/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestHandleVerifyAll_SeedsQueue(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/verify-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	// After seeding, the card should be a known verified record.
	status := server.queue.GetVerificationStatus("tensors/identity")
	if status != domain.StatusVerified {
		t.Errorf("seeded status = %q; want verified", status)
	}
}

func TestHandleVerificationStatus(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/v1/verification/tensors/identity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "verified" {
		t.Errorf("status = %v; want default verified", body["status"])
	}
	if body["schedulable"] != true {
		t.Error("unknown card should be schedulable")
	}
}

func TestHandleSchedulable(t *testing.T) {
	server := setupTestServer(t)

	// Escalate the card first
	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
		"problem_id": "tensors/identity",
		"reason":     "incorrect_output",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("flag status = %d; want 200", rec.Code)
	}

	rec = doJSON(t, server.Handler(), http.MethodPost, "/v1/schedulable", map[string]any{
		"problem_ids": []string{"tensors/identity", "tensors/other"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body struct {
		Schedulable []string `json:"schedulable"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Schedulable) != 1 || body.Schedulable[0] != "tensors/other" {
		t.Errorf("schedulable = %v; want [tensors/other]", body.Schedulable)
	}
}

func TestHandleDecisionHistory_Disabled(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/v1/decisions/tensors/identity", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d; want 501 without a decision log", rec.Code)
	}
}

func TestHandleReviewQueue(t *testing.T) {
	server := setupTestServer(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/flags", map[string]any{
			"problem_id":   "tensors/identity",
			"reason":       "other",
			"notes":        fmt.Sprintf("note %d", i),
			"submitted_at": time.Now().UTC().Format(time.RFC3339),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("flag %d status = %d; want 200", i, rec.Code)
		}
	}

	rec := doJSON(t, server.Handler(), http.MethodGet, "/v1/review-queue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body struct {
		TotalCount int `json:"total_count"`
		Flags      []struct {
			FlagID string `json:"flag_id"`
		} `json:"flags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.TotalCount != 2 {
		t.Errorf("TotalCount = %d; want 2", body.TotalCount)
	}
}
