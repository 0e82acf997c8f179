package domain

import "time"

// FlagReason is the learner-selected category for a problem flag.
type FlagReason string

const (
	ReasonIncorrectOutput     FlagReason = "incorrect_output"
	ReasonAmbiguousPrompt     FlagReason = "ambiguous_prompt"
	ReasonInsufficientContext FlagReason = "insufficient_context"
	ReasonBadHint             FlagReason = "bad_hint"
	ReasonOther               FlagReason = "other"
)

// KnownFlagReason reports whether r is one of the accepted flag reasons.
func KnownFlagReason(r FlagReason) bool {
	switch r {
	case ReasonIncorrectOutput, ReasonAmbiguousPrompt, ReasonInsufficientContext,
		ReasonBadHint, ReasonOther:
		return true
	}
	return false
}

// TriageAction describes what the review queue did with an accepted flag.
type TriageAction string

const (
	TriageQueuedForReview TriageAction = "queued_for_review"
	TriageStatusUpdated   TriageAction = "status_updated_to_needs_review"
)

// FlagRecord is one accepted learner flag. Records are immutable once created.
type FlagRecord struct {
	FlagID                string
	ProblemID             string
	ProblemVersion        int
	Reason                FlagReason
	Notes                 string
	SessionID             string // empty when the flag was anonymous
	UserCodeHash          string
	EvaluationCorrectness string
	EvaluationExplanation string
	SubmittedAt           time.Time
	TriageAction          TriageAction
}

// ReviewQueueSnapshot is a read-only view of the queue's full state.
// Flags are ordered most-recent-first by submission time.
type ReviewQueueSnapshot struct {
	Flags                    []FlagRecord
	TotalCount               int
	StatusByProblemID        map[string]VerificationStatus
	StatusDetailsByProblemID map[string]VerificationRecord
}
