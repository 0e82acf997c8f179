package review

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// flagWindow is the rolling window used for both deduplication and
// per-session rate limiting.
const flagWindow = 24 * time.Hour

// sessionFlagLimit is the maximum number of flags one session may submit
// against the same card inside the window.
const sessionFlagLimit = 3

// escalationThreshold is the number of recent flags (including the incoming
// one) that escalates a card regardless of reason.
const escalationThreshold = 3

// Clock returns the current time; injectable so tests can simulate the
// rolling window without real delays.
type Clock func() time.Time

// Queue is the stateful store of learner flags and per-card verification
// records. It is independent of the verification pipeline: it may be seeded
// from a pipeline snapshot at startup but evolves only through flags
// afterwards. All state is in-process; one mutex serializes mutation because
// the duplicate/rate-limit/escalation checks are check-then-act.
type Queue struct {
	mu sync.RWMutex

	clock Clock

	flags          []*domain.FlagRecord
	flagsByProblem map[string][]*domain.FlagRecord
	records        map[string]*domain.VerificationRecord
	versions       map[string]int
	nextFlagSeq    int
}

// NewQueue creates a review queue using wall-clock time.
func NewQueue() *Queue {
	return NewQueueWithClock(time.Now)
}

// NewQueueWithClock creates a review queue with an injectable clock.
func NewQueueWithClock(clock Clock) *Queue {
	return &Queue{
		clock:          clock,
		flagsByProblem: make(map[string][]*domain.FlagRecord),
		records:        make(map[string]*domain.VerificationRecord),
		versions:       make(map[string]int),
		nextFlagSeq:    1,
	}
}

// SubmitFlagInput is one learner flag submission.
type SubmitFlagInput struct {
	ProblemID             string
	ProblemVersion        int
	Reason                string
	Notes                 string
	SessionID             string
	UserCodeHash          string
	EvaluationCorrectness string
	EvaluationExplanation string
	SubmittedAt           string // ISO timestamp; falls back to "now" when unparseable
}

// SubmitFlagResult is the synchronous outcome of a flag submission.
type SubmitFlagResult struct {
	Accepted           bool
	Message            string
	FlagID             string
	Deduplicated       bool
	RateLimited        bool
	VerificationStatus domain.VerificationStatus
	TriageAction       domain.TriageAction
	ReviewQueueSize    int
}

// SubmitFlag validates, deduplicates and rate-limits a flag submission, then
// records it and escalates the card's verification record when warranted.
func (q *Queue) SubmitFlag(input SubmitFlagInput) SubmitFlagResult {
	problemID := strings.TrimSpace(input.ProblemID)
	reason := domain.FlagReason(strings.TrimSpace(input.Reason))

	if problemID == "" || !domain.KnownFlagReason(reason) {
		return SubmitFlagResult{
			Accepted: false,
			Message:  "invalid flag submission",
		}
	}

	notes := strings.TrimSpace(input.Notes)
	sessionID := strings.TrimSpace(input.SessionID)
	userCodeHash := strings.TrimSpace(input.UserCodeHash)

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	submittedAt := now
	if input.SubmittedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, input.SubmittedAt); err == nil {
			submittedAt = parsed
		}
	}

	// Deduplication: first writer wins inside the window; later duplicates
	// reference the canonical record.
	key := dedupeKey(problemID, reason, sessionID, notes)
	for _, existing := range q.flagsByProblem[problemID] {
		if !q.inWindow(existing.SubmittedAt, now) {
			continue
		}
		if dedupeKey(existing.ProblemID, existing.Reason, existing.SessionID, existing.Notes) == key {
			return SubmitFlagResult{
				Accepted:           true,
				Message:            "duplicate flag already recorded",
				FlagID:             existing.FlagID,
				Deduplicated:       true,
				VerificationStatus: q.statusLocked(problemID),
				TriageAction:       existing.TriageAction,
				ReviewQueueSize:    len(q.flags),
			}
		}
	}

	// Per-session rate limit; anonymous flags are not limited.
	if sessionID != "" {
		sessionCount := 0
		for _, existing := range q.flagsByProblem[problemID] {
			if existing.SessionID == sessionID && q.inWindow(existing.SubmittedAt, now) {
				sessionCount++
			}
		}
		if sessionCount >= sessionFlagLimit {
			return SubmitFlagResult{
				Accepted:           false,
				Message:            "too many flags for this problem from this session",
				RateLimited:        true,
				VerificationStatus: q.statusLocked(problemID),
				ReviewQueueSize:    len(q.flags),
			}
		}
	}

	recentCount := 0
	for _, existing := range q.flagsByProblem[problemID] {
		if q.inWindow(existing.SubmittedAt, now) {
			recentCount++
		}
	}

	record := q.ensureRecordLocked(problemID)

	escalate := record.Status != domain.StatusRejected &&
		(reason == domain.ReasonIncorrectOutput || recentCount+1 >= escalationThreshold)

	triage := domain.TriageQueuedForReview
	if escalate && record.Status != domain.StatusNeedsReview {
		triage = domain.TriageStatusUpdated
	}

	if escalate {
		record.Blockers = append(record.Blockers,
			fmt.Sprintf("FLAGGED_FOR_REVIEW: %s (%d recent flags)", reason, recentCount+1))
		record.Status = domain.StatusNeedsReview
	}

	flag := &domain.FlagRecord{
		FlagID:                fmt.Sprintf("flag_%05d", q.nextFlagSeq),
		ProblemID:             problemID,
		ProblemVersion:        q.resolveVersionLocked(problemID, input.ProblemVersion),
		Reason:                reason,
		Notes:                 notes,
		SessionID:             sessionID,
		UserCodeHash:          userCodeHash,
		EvaluationCorrectness: strings.TrimSpace(input.EvaluationCorrectness),
		EvaluationExplanation: strings.TrimSpace(input.EvaluationExplanation),
		SubmittedAt:           submittedAt,
		TriageAction:          triage,
	}
	q.nextFlagSeq++
	q.flags = append(q.flags, flag)
	q.flagsByProblem[problemID] = append(q.flagsByProblem[problemID], flag)

	return SubmitFlagResult{
		Accepted:           true,
		Message:            "flag recorded",
		FlagID:             flag.FlagID,
		VerificationStatus: record.Status,
		TriageAction:       triage,
		ReviewQueueSize:    len(q.flags),
	}
}

// Seed installs verification records from a pipeline snapshot. This is the
// only path that can set a card to rejected; it is one-way and intended for
// startup. Existing records for the same ids are overwritten.
func (q *Queue) Seed(records map[string]domain.VerificationRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, record := range records {
		q.records[id] = &domain.VerificationRecord{
			Status:       record.Status,
			ApprovalType: record.ApprovalType,
			Blockers:     append([]string(nil), record.Blockers...),
		}
	}
}

// RegisterProblemVersion records the current version of a card, used when a
// flag submission does not carry one.
func (q *Queue) RegisterProblemVersion(problemID string, version int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.versions[problemID] = version
}

// FlagByID returns a copy of the flag with the given id, or nil when the id
// is unknown.
func (q *Queue) FlagByID(flagID string) *domain.FlagRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, flag := range q.flags {
		if flag.FlagID == flagID {
			copied := *flag
			return &copied
		}
	}
	return nil
}

// GetVerificationStatus returns the card's current status, defaulting to
// verified for ids the queue has never seen.
func (q *Queue) GetVerificationStatus(problemID string) domain.VerificationStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.statusLocked(problemID)
}

// GetVerificationStatusDetails returns a copy of the card's verification
// record; unrecognized ids get a default verified record.
func (q *Queue) GetVerificationStatusDetails(problemID string) domain.VerificationRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	record, ok := q.records[problemID]
	if !ok {
		return domain.VerificationRecord{Status: domain.StatusVerified}
	}
	return copyRecord(record)
}

// GetVerificationStatusSnapshot returns a copy of every known card's status.
func (q *Queue) GetVerificationStatusSnapshot() map[string]domain.VerificationStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snapshot := make(map[string]domain.VerificationStatus, len(q.records))
	for id, record := range q.records {
		snapshot[id] = record.Status
	}
	return snapshot
}

// GetVerificationStatusDetailsSnapshot returns deep copies of every known
// card's verification record.
func (q *Queue) GetVerificationStatusDetailsSnapshot() map[string]domain.VerificationRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snapshot := make(map[string]domain.VerificationRecord, len(q.records))
	for id, record := range q.records {
		snapshot[id] = copyRecord(record)
	}
	return snapshot
}

// GetReviewQueueSnapshot returns all flags most-recent-first along with the
// full status maps. Everything is deep-copied; callers cannot mutate queue
// state through the snapshot.
func (q *Queue) GetReviewQueueSnapshot() domain.ReviewQueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	flags := make([]domain.FlagRecord, len(q.flags))
	for i, flag := range q.flags {
		flags[i] = *flag
	}
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].SubmittedAt.After(flags[j].SubmittedAt)
	})

	statusByID := make(map[string]domain.VerificationStatus, len(q.records))
	detailsByID := make(map[string]domain.VerificationRecord, len(q.records))
	for id, record := range q.records {
		statusByID[id] = record.Status
		detailsByID[id] = copyRecord(record)
	}

	return domain.ReviewQueueSnapshot{
		Flags:                    flags,
		TotalCount:               len(flags),
		StatusByProblemID:        statusByID,
		StatusDetailsByProblemID: detailsByID,
	}
}

// IsProblemSchedulable reports whether the scheduler may assign this card:
// ids entirely unknown to the queue are schedulable by default, known ids
// must currently be verified. The lookup is explicitly three-valued so a
// typoed id is distinguishable from a verified one in the code path.
func (q *Queue) IsProblemSchedulable(problemID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	record, ok := q.records[problemID]
	if !ok {
		return true
	}
	return record.Status == domain.StatusVerified
}

// FilterSchedulableProblemIDs removes non-schedulable ids, preserving order.
func (q *Queue) FilterSchedulableProblemIDs(ids []string) []string {
	schedulable := make([]string, 0, len(ids))
	for _, id := range ids {
		if q.IsProblemSchedulable(id) {
			schedulable = append(schedulable, id)
		}
	}
	return schedulable
}

// ResurfacedCandidate is one scheduler candidate awaiting resurfacing.
type ResurfacedCandidate struct {
	ProblemID string
	Score     float64
	DueAt     time.Time
}

// FilterSchedulableResurfacedCandidates removes candidates whose cards are
// not schedulable and reports the excluded ids.
func (q *Queue) FilterSchedulableResurfacedCandidates(candidates []ResurfacedCandidate) ([]ResurfacedCandidate, []string) {
	kept := make([]ResurfacedCandidate, 0, len(candidates))
	var excluded []string
	for _, candidate := range candidates {
		if q.IsProblemSchedulable(candidate.ProblemID) {
			kept = append(kept, candidate)
		} else {
			excluded = append(excluded, candidate.ProblemID)
		}
	}
	return kept, excluded
}

// Internal helpers; callers must hold the lock.

func (q *Queue) statusLocked(problemID string) domain.VerificationStatus {
	if record, ok := q.records[problemID]; ok {
		return record.Status
	}
	return domain.StatusVerified
}

func (q *Queue) ensureRecordLocked(problemID string) *domain.VerificationRecord {
	if record, ok := q.records[problemID]; ok {
		return record
	}
	record := &domain.VerificationRecord{Status: domain.StatusVerified}
	q.records[problemID] = record
	return record
}

func (q *Queue) resolveVersionLocked(problemID string, submitted int) int {
	if submitted > 0 {
		return submitted
	}
	if version, ok := q.versions[problemID]; ok {
		return version
	}
	return 1
}

func (q *Queue) inWindow(at, now time.Time) bool {
	return now.Sub(at) < flagWindow
}

func dedupeKey(problemID string, reason domain.FlagReason, sessionID, notes string) string {
	session := sessionID
	if session == "" {
		session = "session:none"
	}
	return strings.Join([]string{problemID, string(reason), session, strings.ToLower(notes)}, "|")
}

func copyRecord(record *domain.VerificationRecord) domain.VerificationRecord {
	return domain.VerificationRecord{
		Status:       record.Status,
		ApprovalType: record.ApprovalType,
		Blockers:     append([]string(nil), record.Blockers...),
	}
}
