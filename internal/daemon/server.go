package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/card"
	"github.com/felixgeelhaar/tensordrill/internal/config"
	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/events"
	"github.com/felixgeelhaar/tensordrill/internal/repository"
	"github.com/felixgeelhaar/tensordrill/internal/review"
	"github.com/felixgeelhaar/tensordrill/internal/verify"
)

// Server is the quality gate HTTP daemon: flag intake, verification runs and
// review queue inspection.
type Server struct {
	cfg    *config.Config
	server *http.Server
	router *http.ServeMux

	pipeline *verify.Pipeline
	registry *card.Registry
	queue    *review.Queue

	// producer is optional; nil disables event publication.
	producer *events.Producer

	// decisions is optional; nil disables the Postgres decision log.
	decisions *repository.DecisionRepository
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config    *config.Config
	Pipeline  *verify.Pipeline
	Registry  *card.Registry
	Queue     *review.Queue
	Producer  *events.Producer
	Decisions *repository.DecisionRepository
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:       cfg.Config,
		router:    http.NewServeMux(),
		pipeline:  cfg.Pipeline,
		registry:  cfg.Registry,
		queue:     cfg.Queue,
		producer:  cfg.Producer,
		decisions: cfg.Decisions,
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Bind, cfg.Config.Port)
	handler := instrument(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Flag intake
	s.router.HandleFunc("POST /v1/flags", s.handleSubmitFlag)

	// Review queue
	s.router.HandleFunc("GET /v1/review-queue", s.handleReviewQueue)
	s.router.HandleFunc("GET /v1/verification/{id...}", s.handleVerificationStatus)
	s.router.HandleFunc("POST /v1/schedulable", s.handleSchedulable)

	// Verification runs
	s.router.HandleFunc("POST /v1/verify-all", s.handleVerifyAll)
	s.router.HandleFunc("POST /v1/verify/{id...}", s.handleVerify)

	// Decision log (Postgres-backed, optional)
	s.router.HandleFunc("GET /v1/decisions/{id...}", s.handleDecisionHistory)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting tensordrill daemon",
		"addr", s.server.Addr,
		"cards", len(s.registry.ListCards()),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.queue.GetReviewQueueSnapshot()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":            "running",
		"version":           "0.1.0",
		"pipeline_version":  verify.PipelineVersion,
		"cards":             len(s.registry.ListCards()),
		"review_queue_size": snapshot.TotalCount,
	})
}

type submitFlagRequest struct {
	ProblemID             string `json:"problem_id"`
	ProblemVersion        int    `json:"problem_version,omitempty"`
	Reason                string `json:"reason"`
	Notes                 string `json:"notes,omitempty"`
	SessionID             string `json:"session_id,omitempty"`
	UserCodeHash          string `json:"user_code_hash,omitempty"`
	EvaluationCorrectness string `json:"evaluation_correctness,omitempty"`
	EvaluationExplanation string `json:"evaluation_explanation,omitempty"`
	SubmittedAt           string `json:"submitted_at,omitempty"`
}

type submitFlagResponse struct {
	Accepted           bool   `json:"accepted"`
	Message            string `json:"message"`
	FlagID             string `json:"flag_id,omitempty"`
	Deduplicated       bool   `json:"deduplicated"`
	RateLimited        bool   `json:"rate_limited"`
	VerificationStatus string `json:"verification_status,omitempty"`
	TriageAction       string `json:"triage_action,omitempty"`
	ReviewQueueSize    int    `json:"review_queue_size"`
}

func (s *Server) handleSubmitFlag(w http.ResponseWriter, r *http.Request) {
	var req submitFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	input := review.SubmitFlagInput{
		ProblemID:             req.ProblemID,
		ProblemVersion:        req.ProblemVersion,
		Reason:                req.Reason,
		Notes:                 req.Notes,
		SessionID:             req.SessionID,
		UserCodeHash:          req.UserCodeHash,
		EvaluationCorrectness: req.EvaluationCorrectness,
		EvaluationExplanation: req.EvaluationExplanation,
		SubmittedAt:           req.SubmittedAt,
	}
	result := s.queue.SubmitFlag(input)

	if s.producer != nil {
		s.producer.PublishFromResult(r.Context(), s.queue, input, &result)
	}

	status := http.StatusOK
	switch {
	case result.RateLimited:
		status = http.StatusTooManyRequests
	case !result.Accepted:
		status = http.StatusBadRequest
	}

	s.jsonResponse(w, status, submitFlagResponse{
		Accepted:           result.Accepted,
		Message:            result.Message,
		FlagID:             result.FlagID,
		Deduplicated:       result.Deduplicated,
		RateLimited:        result.RateLimited,
		VerificationStatus: string(result.VerificationStatus),
		TriageAction:       string(result.TriageAction),
		ReviewQueueSize:    result.ReviewQueueSize,
	})
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	snapshot := s.queue.GetReviewQueueSnapshot()

	flags := make([]map[string]any, 0, len(snapshot.Flags))
	for _, flag := range snapshot.Flags {
		flags = append(flags, map[string]any{
			"flag_id":         flag.FlagID,
			"problem_id":      flag.ProblemID,
			"problem_version": flag.ProblemVersion,
			"reason":          flag.Reason,
			"notes":           flag.Notes,
			"session_id":      flag.SessionID,
			"submitted_at":    flag.SubmittedAt.UTC().Format(time.RFC3339),
			"triage_action":   flag.TriageAction,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total_count": snapshot.TotalCount,
		"flags":       flags,
		"statuses":    snapshot.StatusByProblemID,
	})
}

func (s *Server) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	problemID := r.PathValue("id")
	record := s.queue.GetVerificationStatusDetails(problemID)

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"problem_id":    problemID,
		"status":        record.Status,
		"approval_type": record.ApprovalType,
		"blockers":      record.Blockers,
		"schedulable":   s.queue.IsProblemSchedulable(problemID),
	})
}

type schedulableRequest struct {
	ProblemIDs []string `json:"problem_ids"`
}

func (s *Server) handleSchedulable(w http.ResponseWriter, r *http.Request) {
	var req schedulableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	schedulable := s.queue.FilterSchedulableProblemIDs(req.ProblemIDs)

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"schedulable": schedulable,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	problemID := r.PathValue("id")

	spec, err := s.registry.Card(problemID)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "card not found", err)
		return
	}

	decision, err := s.pipeline.Verify(r.Context(), spec, nil)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "verification failed", err)
		return
	}

	s.recordDecision(r.Context(), decision)

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"problem_id":       decision.ProblemID,
		"status":           decision.Status,
		"approval_type":    decision.ApprovalType,
		"blockers":         decision.Blockers,
		"warnings":         decision.Warnings,
		"pipeline_version": decision.Metadata.PipelineVersion,
		"verified_at":      decision.Metadata.VerifiedAtISO,
	})
}

func (s *Server) handleVerifyAll(w http.ResponseWriter, r *http.Request) {
	records := make(map[string]domain.VerificationRecord)
	for _, spec := range s.registry.ListCards() {
		decision, err := s.pipeline.Verify(r.Context(), spec, nil)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "batch verification failed", err)
			return
		}
		s.recordDecision(r.Context(), decision)
		records[decision.ProblemID] = domain.VerificationRecord{
			Status:       decision.Status,
			ApprovalType: decision.ApprovalType,
			Blockers:     decision.Blockers,
		}
	}

	// Batch output doubles as the review queue seed.
	s.queue.Seed(records)

	statuses := make(map[string]string, len(records))
	for id, record := range records {
		statuses[id] = string(record.Status)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total":    len(records),
		"statuses": statuses,
	})
}

// recordDecision appends a decision to the Postgres log when one is wired.
// Log failures never fail the verification request itself.
func (s *Server) recordDecision(ctx context.Context, decision *domain.VerificationDecision) {
	if s.decisions == nil {
		return
	}
	if err := s.decisions.Record(ctx, decision); err != nil {
		slog.Error("failed to record decision",
			"problem_id", decision.ProblemID,
			"error", err,
		)
	}
}

func (s *Server) handleDecisionHistory(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		s.jsonError(w, http.StatusNotImplemented, "decision log is not enabled", nil)
		return
	}

	problemID := r.PathValue("id")
	history, err := s.decisions.History(r.Context(), problemID, 20)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to load decision history", err)
		return
	}

	entries := make([]map[string]any, 0, len(history))
	for _, decision := range history {
		entries = append(entries, map[string]any{
			"status":           decision.Status,
			"approval_type":    decision.ApprovalType,
			"blockers":         decision.Blockers,
			"warnings":         decision.Warnings,
			"pipeline_version": decision.Metadata.PipelineVersion,
			"verified_at":      decision.Metadata.VerifiedAtISO,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"problem_id": problemID,
		"decisions":  entries,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
