package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/leakage"
	"github.com/felixgeelhaar/tensordrill/internal/schema"
)

// PipelineVersion identifies the verification pipeline revision recorded in
// decision metadata.
const PipelineVersion = "1.0.0"

// Stage names recorded on diagnostics.
const (
	StageSchema      = "schema"
	StageArtifacts   = "artifact_consistency"
	StageRegression  = "runtime_regression"
	StageFidelity    = "fidelity"
	StageHintLeakage = "hint_leakage"
)

// hardRejectionCodes are the blocker codes that force a rejected status.
// Blockers outside this set (hint leakage) downgrade to needs_review instead.
var hardRejectionCodes = map[string]bool{
	domain.CodeSchemaInvalid:                  true,
	domain.CodeMissingRuntimeFixture:          true,
	domain.CodeOutputShapeFixtureMismatch:     true,
	domain.CodeFunctionNameMismatch:           true,
	domain.CodeMissingReferenceSolution:       true,
	domain.CodeReferenceRuntimeFailure:        true,
	domain.CodeReferenceRuntimeCaseFailure:    true,
	domain.CodeFidelityRequiredChecksMismatch: true,
}

// Dependencies holds the collaborators the pipeline verifies against.
type Dependencies struct {
	Schema     SchemaValidator
	Runtime    Runtime
	References ReferenceResolver
	Fixtures   FixtureResolver

	// Linter defaults to leakage.NewLinter() when nil.
	Linter HintLinter

	// Now defaults to time.Now; injectable for tests.
	Now func() time.Time
}

// Pipeline orchestrates the verification stages for one card. It holds no
// mutable state of its own; decisions vary only with the collaborators' data.
type Pipeline struct {
	schema   SchemaValidator
	runtime  Runtime
	refs     ReferenceResolver
	fixtures FixtureResolver
	linter   HintLinter
	now      func() time.Time
}

// NewPipeline creates a verification pipeline.
func NewPipeline(deps Dependencies) *Pipeline {
	linter := deps.Linter
	if linter == nil {
		linter = leakage.NewLinter()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		schema:   deps.Schema,
		runtime:  deps.Runtime,
		refs:     deps.References,
		fixtures: deps.Fixtures,
		linter:   linter,
		now:      now,
	}
}

// Options override collaborator lookups for a single verification run.
type Options struct {
	// Fixture replaces the fixture registry lookup.
	Fixture *domain.Fixture

	// ReferenceSolution replaces the reference registry lookup.
	ReferenceSolution string
}

// Verify runs all stages against the card and returns a point-in-time
// decision. Stages run unconditionally in a fixed order; a later stage never
// suppresses an earlier stage's diagnostics. Verify only returns an error for
// programmer-error inputs, never for a bad card.
func (p *Pipeline) Verify(ctx context.Context, card *domain.CardSpecification, opts *Options) (*domain.VerificationDecision, error) {
	if card == nil {
		return nil, domain.ErrNilCard
	}
	if opts == nil {
		opts = &Options{}
	}

	var diagnostics []domain.Diagnostic

	diagnostics = append(diagnostics, p.runSchemaStage(card)...)
	diagnostics = append(diagnostics, p.runArtifactStage(card, opts)...)

	regression, reference := p.runRegressionStage(ctx, card, opts)
	diagnostics = append(diagnostics, regression...)

	diagnostics = append(diagnostics, p.runFidelityStage(card)...)
	diagnostics = append(diagnostics, p.runLeakageStage(card, reference)...)

	return p.decide(card, diagnostics), nil
}

// VerifyBatch runs the per-card decision over a list of cards and returns a
// map suitable for seeding the review queue. Diagnostics are not retained.
func (p *Pipeline) VerifyBatch(ctx context.Context, cards []*domain.CardSpecification) (map[string]domain.VerificationRecord, error) {
	records := make(map[string]domain.VerificationRecord, len(cards))

	for _, card := range cards {
		decision, err := p.Verify(ctx, card, nil)
		if err != nil {
			return nil, fmt.Errorf("verify card %q: %w", cardID(card), err)
		}
		records[decision.ProblemID] = domain.VerificationRecord{
			Status:       decision.Status,
			ApprovalType: decision.ApprovalType,
			Blockers:     decision.Blockers,
		}
	}

	return records, nil
}

func cardID(card *domain.CardSpecification) string {
	if card == nil {
		return ""
	}
	return card.ID
}

// Stage 1: structural schema validation.
func (p *Pipeline) runSchemaStage(card *domain.CardSpecification) []domain.Diagnostic {
	validation := p.schema.Validate(card)

	var diagnostics []domain.Diagnostic
	for _, msg := range validation.Errors {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: domain.SeverityBlocker,
			Stage:    StageSchema,
			Code:     domain.CodeSchemaInvalid,
			Message:  msg,
		})
	}
	for _, msg := range validation.Warnings {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Stage:    StageSchema,
			Code:     domain.CodeSchemaWarning,
			Message:  msg,
		})
	}
	return diagnostics
}

// Stage 2: consistency between the card's declarations and its fixture.
func (p *Pipeline) runArtifactStage(card *domain.CardSpecification, opts *Options) []domain.Diagnostic {
	fixture := opts.Fixture
	if fixture == nil {
		if found, ok := p.fixtures.Fixture(card.ID); ok {
			fixture = found
		}
	}

	if fixture == nil {
		// Remaining consistency rules are meaningless without a fixture.
		return []domain.Diagnostic{{
			Severity: domain.SeverityBlocker,
			Stage:    StageArtifacts,
			Code:     domain.CodeMissingRuntimeFixture,
			Message:  fmt.Sprintf("no execution fixture registered for %s", card.ID),
		}}
	}

	var diagnostics []domain.Diagnostic

	// Shape parse failures are the schema stage's finding; compare only when
	// the declared shape is well-formed.
	if rows, cols, err := schema.ParseShape(card.OutputContract.Shape); err == nil {
		actualRows := fixture.ExpectedOutput.Rows()
		actualCols := fixture.ExpectedOutput.Cols()
		if rows != actualRows || cols != actualCols {
			diagnostics = append(diagnostics, domain.Diagnostic{
				Severity: domain.SeverityBlocker,
				Stage:    StageArtifacts,
				Code:     domain.CodeOutputShapeFixtureMismatch,
				Message: fmt.Sprintf("declared output shape [%d, %d] does not match fixture shape [%d, %d]",
					rows, cols, actualRows, actualCols),
			})
		}
	}

	declared := card.EvaluationArtifacts.ReferenceSolution.FunctionName
	if declared != fixture.FunctionName {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: domain.SeverityBlocker,
			Stage:    StageArtifacts,
			Code:     domain.CodeFunctionNameMismatch,
			Message: fmt.Sprintf("declared reference function %q does not match fixture function %q",
				declared, fixture.FunctionName),
		})
	}

	return diagnostics
}

// Stage 3: out-of-process regression run of the reference solution. Returns
// the reference solution text so the leakage stage can reuse the same lookup.
func (p *Pipeline) runRegressionStage(ctx context.Context, card *domain.CardSpecification, opts *Options) ([]domain.Diagnostic, string) {
	reference := opts.ReferenceSolution
	if reference == "" {
		if found, ok := p.refs.ReferenceSolution(card.ID); ok {
			reference = found
		}
	}

	if reference == "" {
		return []domain.Diagnostic{{
			Severity: domain.SeverityBlocker,
			Stage:    StageRegression,
			Code:     domain.CodeMissingReferenceSolution,
			Message:  fmt.Sprintf("no reference solution registered for %s", card.ID),
		}}, ""
	}

	var result *domain.RunResult
	var err error
	if opts.Fixture != nil {
		result, err = p.runtime.RunAgainstFixture(ctx, card.ID, reference, opts.Fixture)
	} else {
		result, err = p.runtime.Run(ctx, card.ID, reference)
	}

	if err != nil {
		return []domain.Diagnostic{{
			Severity: domain.SeverityBlocker,
			Stage:    StageRegression,
			Code:     domain.CodeReferenceRuntimeFailure,
			Message:  fmt.Sprintf("sandbox unavailable: %v", err),
		}}, reference
	}

	if !result.OK {
		return []domain.Diagnostic{{
			Severity: domain.SeverityBlocker,
			Stage:    StageRegression,
			Code:     domain.CodeReferenceRuntimeFailure,
			Message:  fmt.Sprintf("%s: %s", result.ErrorCode, result.Message),
		}}, reference
	}

	if failing := result.FailingCaseIDs(); len(failing) > 0 {
		return []domain.Diagnostic{{
			Severity: domain.SeverityBlocker,
			Stage:    StageRegression,
			Code:     domain.CodeReferenceRuntimeCaseFailure,
			Message:  fmt.Sprintf("reference solution fails fixture cases: %s", strings.Join(failing, ", ")),
		}}, reference
	}

	return nil, reference
}

// Stage 4: fidelity anchoring of the card's text against its target.
func (p *Pipeline) runFidelityStage(card *domain.CardSpecification) []domain.Diagnostic {
	var diagnostics []domain.Diagnostic

	if missing := missingRequiredChecks(card); len(missing) > 0 {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: domain.SeverityBlocker,
			Stage:    StageFidelity,
			Code:     domain.CodeFidelityRequiredChecksMismatch,
			Message:  fmt.Sprintf("required semantic checks not represented in card text: %s", strings.Join(missing, "; ")),
		})
	}

	if !anchorsTargetFramework(card) {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Stage:    StageFidelity,
			Code:     domain.CodeFidelityPytorchAnchorWeak,
			Message:  fmt.Sprintf("card goal does not mention %s", targetFramework),
		})
	}

	return diagnostics
}

// Stage 5: hint leakage against the reference solution from stage 3.
func (p *Pipeline) runLeakageStage(card *domain.CardSpecification, reference string) []domain.Diagnostic {
	if reference == "" {
		return []domain.Diagnostic{{
			Severity: domain.SeverityWarning,
			Stage:    StageHintLeakage,
			Code:     domain.CodeHintLeakageSkipped,
			Message:  "hint leakage check skipped: no reference solution available",
		}}
	}

	report := p.linter.Lint(card.Hints.Tier1, card.Hints.Tier2, card.Hints.Tier3, reference)

	var diagnostics []domain.Diagnostic
	for _, issue := range report.Issues {
		diagnostics = append(diagnostics, domain.Diagnostic{
			Severity: issue.Severity,
			Stage:    StageHintLeakage,
			Code:     issue.Code,
			Message:  issue.Message,
		})
	}
	return diagnostics
}

func (p *Pipeline) decide(card *domain.CardSpecification, diagnostics []domain.Diagnostic) *domain.VerificationDecision {
	decision := &domain.VerificationDecision{
		ProblemID:   card.ID,
		Blockers:    []string{},
		Warnings:    []string{},
		Diagnostics: diagnostics,
		Metadata: domain.DecisionMetadata{
			PipelineVersion: PipelineVersion,
		},
	}

	hardRejected := false
	for _, d := range diagnostics {
		formatted := fmt.Sprintf("%s: %s", d.Code, d.Message)
		switch d.Severity {
		case domain.SeverityBlocker:
			decision.Blockers = append(decision.Blockers, formatted)
			if hardRejectionCodes[d.Code] {
				hardRejected = true
			}
		case domain.SeverityWarning:
			decision.Warnings = append(decision.Warnings, formatted)
		}
	}

	switch {
	case len(decision.Blockers) == 0:
		decision.Status = domain.StatusVerified
		decision.ApprovalType = card.Verification.DecisionMetadata.ApprovalType
		if decision.ApprovalType == "" {
			decision.ApprovalType = domain.ApprovalTypeAutoProvisional
		}
		decision.Metadata.VerifiedAtISO = p.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	case hardRejected:
		decision.Status = domain.StatusRejected
	default:
		decision.Status = domain.StatusNeedsReview
	}

	return decision
}
