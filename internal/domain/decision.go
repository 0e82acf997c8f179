package domain

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityBlocker Severity = "blocker"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding from a verification stage. Diagnostics are
// produced fresh on every pipeline run and never persisted.
type Diagnostic struct {
	Severity Severity
	Stage    string
	Code     string
	Message  string
}

// Diagnostic codes emitted by the verification pipeline.
const (
	CodeSchemaInvalid                  = "SCHEMA_INVALID"
	CodeSchemaWarning                  = "SCHEMA_WARNING"
	CodeMissingRuntimeFixture          = "MISSING_RUNTIME_FIXTURE"
	CodeOutputShapeFixtureMismatch     = "OUTPUT_SHAPE_FIXTURE_MISMATCH"
	CodeFunctionNameMismatch           = "FUNCTION_NAME_MISMATCH"
	CodeMissingReferenceSolution       = "MISSING_REFERENCE_SOLUTION"
	CodeReferenceRuntimeFailure        = "REFERENCE_RUNTIME_FAILURE"
	CodeReferenceRuntimeCaseFailure    = "REFERENCE_RUNTIME_CASE_FAILURE"
	CodeFidelityRequiredChecksMismatch = "FIDELITY_REQUIRED_CHECKS_MISMATCH"
	CodeFidelityPytorchAnchorWeak      = "FIDELITY_PYTORCH_ANCHOR_WEAK"
	CodeHintLeakageSkipped             = "HINT_LEAKAGE_SKIPPED"
)

// VerificationStatus is the publishable state of a card.
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "verified"
	StatusNeedsReview VerificationStatus = "needs_review"
	StatusRejected    VerificationStatus = "rejected"
)

// ApprovalTypeAutoProvisional is the default approval type for cards that
// verify cleanly without an author-asserted approval type.
const ApprovalTypeAutoProvisional = "auto_provisional"

// DecisionMetadata describes how and when a decision was produced.
type DecisionMetadata struct {
	PipelineVersion string
	VerifiedAtISO   string // empty unless status is verified
}

// VerificationDecision is the pipeline's point-in-time verdict for one card.
// Blockers and Warnings are formatted "CODE: message" views over Diagnostics.
type VerificationDecision struct {
	ProblemID    string
	Status       VerificationStatus
	ApprovalType string // empty unless status is verified
	Blockers     []string
	Warnings     []string
	Diagnostics  []Diagnostic
	Metadata     DecisionMetadata
}

// VerificationRecord is the review queue's persisted, mutable per-card state.
// It is also the shape of one entry in a pipeline batch snapshot.
type VerificationRecord struct {
	Status       VerificationStatus
	ApprovalType string
	Blockers     []string
}
