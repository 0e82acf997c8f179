package mcp

import (
	"context"
	"fmt"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/tensordrill/internal/card"
	"github.com/felixgeelhaar/tensordrill/internal/review"
	"github.com/felixgeelhaar/tensordrill/internal/verify"
)

// Server wraps the MCP server with quality gate functionality
type Server struct {
	mcpServer *server.Server
	pipeline  *verify.Pipeline
	registry  *card.Registry
	queue     *review.Queue
}

// Config contains configuration for the MCP server
type Config struct {
	Pipeline *verify.Pipeline
	Registry *card.Registry
	Queue    *review.Queue
}

// NewServer creates a new MCP server for the card quality gate
func NewServer(cfg Config) *Server {
	s := &Server{
		pipeline: cfg.Pipeline,
		registry: cfg.Registry,
		queue:    cfg.Queue,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "tensordrill",
		Version: "0.1.0",
	}, server.WithInstructions(`
Tensordrill is the quality gate for tensor-programming practice cards.
It verifies authored cards before publication and triages learner flags.

Available tools:
- drill_verify: Run the verification pipeline on one card
- drill_verify_all: Verify every card in the registry
- drill_flag: Submit a learner flag against a card
- drill_status: Get a card's verification status
- drill_queue: Inspect the review queue
- drill_schedulable: Filter problem ids down to schedulable ones
`))

	s.registerTools()

	return s
}

// registerTools registers all quality gate MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("drill_verify").
		Description("Run the five-stage verification pipeline on one card.").
		Handler(s.handleVerify)

	s.mcpServer.Tool("drill_verify_all").
		Description("Verify every card in the registry and return per-card statuses.").
		Handler(s.handleVerifyAll)

	s.mcpServer.Tool("drill_flag").
		Description("Submit a learner flag against a card. Duplicates and rate limits are handled here.").
		Handler(s.handleFlag)

	s.mcpServer.Tool("drill_status").
		Description("Get a card's current verification status and blockers.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("drill_queue").
		Description("Get the review queue: all flags most-recent-first plus per-card statuses.").
		Handler(s.handleQueue)

	s.mcpServer.Tool("drill_schedulable").
		Description("Filter a list of problem ids down to the ones the scheduler may assign.").
		Handler(s.handleSchedulable)
}

// Input/Output types for tools

type VerifyInput struct {
	ProblemID string `json:"problem_id" jsonschema:"description=Card id to verify"`
}

type VerifyOutput struct {
	ProblemID       string   `json:"problem_id"`
	Status          string   `json:"status"`
	ApprovalType    string   `json:"approval_type,omitempty"`
	Blockers        []string `json:"blockers"`
	Warnings        []string `json:"warnings"`
	PipelineVersion string   `json:"pipeline_version"`
	VerifiedAt      string   `json:"verified_at,omitempty"`
}

type VerifyAllInput struct{}

type VerifyAllOutput struct {
	Total    int               `json:"total"`
	Statuses map[string]string `json:"statuses"`
}

type FlagInput struct {
	ProblemID      string `json:"problem_id" jsonschema:"description=Card id being flagged"`
	ProblemVersion int    `json:"problem_version,omitempty" jsonschema:"description=Card version the learner saw"`
	Reason         string `json:"reason" jsonschema:"description=Flag reason,enum=incorrect_output,enum=ambiguous_prompt,enum=insufficient_context,enum=bad_hint,enum=other"`
	Notes          string `json:"notes,omitempty" jsonschema:"description=Free-form detail"`
	SessionID      string `json:"session_id,omitempty" jsonschema:"description=Practice session the flag came from"`
}

type FlagOutput struct {
	Accepted           bool   `json:"accepted"`
	Message            string `json:"message"`
	FlagID             string `json:"flag_id,omitempty"`
	Deduplicated       bool   `json:"deduplicated"`
	RateLimited        bool   `json:"rate_limited"`
	VerificationStatus string `json:"verification_status,omitempty"`
	TriageAction       string `json:"triage_action,omitempty"`
	ReviewQueueSize    int    `json:"review_queue_size"`
}

type StatusInput struct {
	ProblemID string `json:"problem_id" jsonschema:"description=Card id to look up"`
}

type StatusOutput struct {
	ProblemID    string   `json:"problem_id"`
	Status       string   `json:"status"`
	ApprovalType string   `json:"approval_type,omitempty"`
	Blockers     []string `json:"blockers"`
	Schedulable  bool     `json:"schedulable"`
}

type QueueInput struct{}

type QueueFlag struct {
	FlagID       string `json:"flag_id"`
	ProblemID    string `json:"problem_id"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes,omitempty"`
	SubmittedAt  string `json:"submitted_at"`
	TriageAction string `json:"triage_action"`
}

type QueueOutput struct {
	TotalCount int               `json:"total_count"`
	Flags      []QueueFlag       `json:"flags"`
	Statuses   map[string]string `json:"statuses"`
}

type SchedulableInput struct {
	ProblemIDs []string `json:"problem_ids" jsonschema:"description=Candidate problem ids"`
}

type SchedulableOutput struct {
	Schedulable []string `json:"schedulable"`
	Excluded    []string `json:"excluded"`
}

// Tool handlers

func (s *Server) handleVerify(ctx context.Context, input VerifyInput) (VerifyOutput, error) {
	spec, err := s.registry.Card(input.ProblemID)
	if err != nil {
		return VerifyOutput{}, fmt.Errorf("card not found: %w", err)
	}

	decision, err := s.pipeline.Verify(ctx, spec, nil)
	if err != nil {
		return VerifyOutput{}, fmt.Errorf("verification failed: %w", err)
	}

	return VerifyOutput{
		ProblemID:       decision.ProblemID,
		Status:          string(decision.Status),
		ApprovalType:    decision.ApprovalType,
		Blockers:        decision.Blockers,
		Warnings:        decision.Warnings,
		PipelineVersion: decision.Metadata.PipelineVersion,
		VerifiedAt:      decision.Metadata.VerifiedAtISO,
	}, nil
}

func (s *Server) handleVerifyAll(ctx context.Context, input VerifyAllInput) (VerifyAllOutput, error) {
	cards := s.registry.ListCards()

	records, err := s.pipeline.VerifyBatch(ctx, cards)
	if err != nil {
		return VerifyAllOutput{}, fmt.Errorf("batch verification failed: %w", err)
	}

	statuses := make(map[string]string, len(records))
	for id, record := range records {
		statuses[id] = string(record.Status)
	}

	return VerifyAllOutput{
		Total:    len(statuses),
		Statuses: statuses,
	}, nil
}

func (s *Server) handleFlag(ctx context.Context, input FlagInput) (FlagOutput, error) {
	result := s.queue.SubmitFlag(review.SubmitFlagInput{
		ProblemID:      input.ProblemID,
		ProblemVersion: input.ProblemVersion,
		Reason:         input.Reason,
		Notes:          input.Notes,
		SessionID:      input.SessionID,
	})

	return FlagOutput{
		Accepted:           result.Accepted,
		Message:            result.Message,
		FlagID:             result.FlagID,
		Deduplicated:       result.Deduplicated,
		RateLimited:        result.RateLimited,
		VerificationStatus: string(result.VerificationStatus),
		TriageAction:       string(result.TriageAction),
		ReviewQueueSize:    result.ReviewQueueSize,
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, input StatusInput) (StatusOutput, error) {
	record := s.queue.GetVerificationStatusDetails(input.ProblemID)

	return StatusOutput{
		ProblemID:    input.ProblemID,
		Status:       string(record.Status),
		ApprovalType: record.ApprovalType,
		Blockers:     record.Blockers,
		Schedulable:  s.queue.IsProblemSchedulable(input.ProblemID),
	}, nil
}

func (s *Server) handleQueue(ctx context.Context, input QueueInput) (QueueOutput, error) {
	snapshot := s.queue.GetReviewQueueSnapshot()

	flags := make([]QueueFlag, 0, len(snapshot.Flags))
	for _, flag := range snapshot.Flags {
		flags = append(flags, QueueFlag{
			FlagID:       flag.FlagID,
			ProblemID:    flag.ProblemID,
			Reason:       string(flag.Reason),
			Notes:        flag.Notes,
			SubmittedAt:  flag.SubmittedAt.UTC().Format(time.RFC3339),
			TriageAction: string(flag.TriageAction),
		})
	}

	statuses := make(map[string]string, len(snapshot.StatusByProblemID))
	for id, status := range snapshot.StatusByProblemID {
		statuses[id] = string(status)
	}

	return QueueOutput{
		TotalCount: snapshot.TotalCount,
		Flags:      flags,
		Statuses:   statuses,
	}, nil
}

func (s *Server) handleSchedulable(ctx context.Context, input SchedulableInput) (SchedulableOutput, error) {
	schedulable := s.queue.FilterSchedulableProblemIDs(input.ProblemIDs)

	kept := make(map[string]bool, len(schedulable))
	for _, id := range schedulable {
		kept[id] = true
	}
	var excluded []string
	for _, id := range input.ProblemIDs {
		if !kept[id] {
			excluded = append(excluded, id)
		}
	}

	return SchedulableOutput{
		Schedulable: schedulable,
		Excluded:    excluded,
	}, nil
}

// ServeStdio starts the MCP server on stdio (for editor integration)
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
