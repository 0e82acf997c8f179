package leakage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// Issue is one leakage finding for a hint tier.
type Issue struct {
	Tier     int
	Severity domain.Severity
	Code     string
	Message  string
}

// Report is the linter's verdict over all three hint tiers.
// OK is true iff no issue has blocker severity.
type Report struct {
	OK     bool
	Issues []Issue
}

// TierPolicy holds the leakage thresholds for one hint tier.
type TierPolicy struct {
	MaxOverlap      float64 // token-overlap ratio at or above this blocks
	MaxVerbatimHits int     // verbatim line hits at or above this block
}

// Linter scores hint tiers against a reference solution for content leakage.
// Higher tiers are allowed to reveal more, so thresholds loosen per tier.
type Linter struct {
	tier1 TierPolicy
	tier2 TierPolicy
	tier3 TierPolicy
}

// NewLinter creates a linter with the default tier policies.
func NewLinter() *Linter {
	return &Linter{
		tier1: TierPolicy{MaxOverlap: 0.50, MaxVerbatimHits: 1},
		tier2: TierPolicy{MaxOverlap: 0.65, MaxVerbatimHits: 2},
		tier3: TierPolicy{MaxOverlap: 0.85, MaxVerbatimHits: 3},
	}
}

// Lint evaluates all three hint tiers against the reference solution text.
func (l *Linter) Lint(tier1, tier2, tier3, reference string) *Report {
	report := &Report{OK: true, Issues: []Issue{}}

	l.lintTier1(tier1, reference, report)
	l.lintTier2(tier2, reference, report)
	l.lintTier3(tier3, reference, report)

	for _, issue := range report.Issues {
		if issue.Severity == domain.SeverityBlocker {
			report.OK = false
			break
		}
	}

	return report
}

func (l *Linter) lintTier1(hint, reference string, report *Report) {
	if hasExecutableCodeIndicators(hint) {
		report.Issues = append(report.Issues, Issue{
			Tier:     1,
			Severity: domain.SeverityBlocker,
			Code:     "TIER1_CODE_LEAK",
			Message:  "tier 1 hint contains executable code indicators",
		})
	}

	overlap := tokenOverlapRatio(hint, reference)
	hits := verbatimLineHits(hint, reference)
	if overlap >= l.tier1.MaxOverlap || hits >= l.tier1.MaxVerbatimHits {
		report.Issues = append(report.Issues, Issue{
			Tier:     1,
			Severity: domain.SeverityBlocker,
			Code:     "TIER1_REFERENCE_OVERLAP",
			Message:  overlapMessage(1, overlap, hits),
		})
	}
}

func (l *Linter) lintTier2(hint, reference string, report *Report) {
	if hasFunctionDefinition(hint) {
		report.Issues = append(report.Issues, Issue{
			Tier:     2,
			Severity: domain.SeverityBlocker,
			Code:     "TIER2_DIRECT_ANSWER",
			Message:  "tier 2 hint contains a function definition",
		})
	}

	overlap := tokenOverlapRatio(hint, reference)
	hits := verbatimLineHits(hint, reference)
	if overlap >= l.tier2.MaxOverlap || hits >= l.tier2.MaxVerbatimHits {
		report.Issues = append(report.Issues, Issue{
			Tier:     2,
			Severity: domain.SeverityBlocker,
			Code:     "TIER2_REFERENCE_OVERLAP",
			Message:  overlapMessage(2, overlap, hits),
		})
	}
}

func (l *Linter) lintTier3(hint, reference string, report *Report) {
	if hasFunctionDefinition(hint) || hasFencedCodeBlock(hint) {
		report.Issues = append(report.Issues, Issue{
			Tier:     3,
			Severity: domain.SeverityBlocker,
			Code:     "TIER3_FULL_SOLUTION_LEAK",
			Message:  "tier 3 hint contains a function definition or fenced code block",
		})
	}

	overlap := tokenOverlapRatio(hint, reference)
	hits := verbatimLineHits(hint, reference)
	if overlap >= l.tier3.MaxOverlap || hits >= l.tier3.MaxVerbatimHits {
		report.Issues = append(report.Issues, Issue{
			Tier:     3,
			Severity: domain.SeverityBlocker,
			Code:     "TIER3_EXCESSIVE_OVERLAP",
			Message:  overlapMessage(3, overlap, hits),
		})
	}
}

func overlapMessage(tier int, overlap float64, hits int) string {
	return fmt.Sprintf("tier %d hint overlaps the reference solution (ratio %.2f, verbatim lines %d)",
		tier, overlap, hits)
}

// -----------------------------------------------------------------------------
// Text heuristics
// These are inherently fuzzy; kept as small pure functions so thresholds can
// be tuned without touching the tier rules.
// -----------------------------------------------------------------------------

// minVerbatimLineLen is the minimum trimmed reference line length considered
// for verbatim matching. Shorter lines are too generic to count.
const minVerbatimLineLen = 24

var (
	nonTokenRe    = regexp.MustCompile(`[^a-z0-9_]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	funcDefRe     = regexp.MustCompile(`\bdef\s+\w+\s*\(`)
	returnStmtRe  = regexp.MustCompile(`\breturn\b`)
	assignmentRe  = regexp.MustCompile(`\w+\s*=\s*[^=\s]`)
	libCallRe     = regexp.MustCompile(`\b(?:np|numpy|torch|jnp|tensor)\.\w+\s*\(`)
	barePassRe    = regexp.MustCompile(`(?m)^\s*pass\s*$`)
)

// tokenOverlapRatio computes |hintTokens ∩ referenceTokens| / |referenceTokens|,
// over lower-cased alphanumeric tokens of length > 1. Returns 0 when the
// reference has no tokens.
func tokenOverlapRatio(hint, reference string) float64 {
	hintTokens := tokenSet(hint)
	refTokens := tokenSet(reference)

	if len(refTokens) == 0 {
		return 0
	}

	shared := 0
	for token := range refTokens {
		if hintTokens[token] {
			shared++
		}
	}

	return float64(shared) / float64(len(refTokens))
}

func tokenSet(text string) map[string]bool {
	normalized := nonTokenRe.ReplaceAllString(strings.ToLower(text), " ")
	tokens := make(map[string]bool)
	for _, token := range strings.Fields(normalized) {
		if len(token) <= 1 {
			continue
		}
		tokens[token] = true
	}
	return tokens
}

// verbatimLineHits counts reference lines of at least minVerbatimLineLen
// characters whose normalized form appears verbatim inside the hint.
func verbatimLineHits(hint, reference string) int {
	normalizedHint := collapseWhitespace(strings.ToLower(hint))

	hits := 0
	for _, line := range strings.Split(reference, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < minVerbatimLineLen {
			continue
		}
		if strings.Contains(normalizedHint, collapseWhitespace(strings.ToLower(trimmed))) {
			hits++
		}
	}
	return hits
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// hasExecutableCodeIndicators reports whether a hint looks like runnable code:
// a function definition, a return statement, an assignment, a tensor-library
// call, a fenced code block, or a bare pass statement.
func hasExecutableCodeIndicators(hint string) bool {
	return hasFunctionDefinition(hint) ||
		returnStmtRe.MatchString(hint) ||
		assignmentRe.MatchString(hint) ||
		libCallRe.MatchString(hint) ||
		hasFencedCodeBlock(hint) ||
		barePassRe.MatchString(hint)
}

func hasFunctionDefinition(hint string) bool {
	return funcDefRe.MatchString(hint)
}

func hasFencedCodeBlock(hint string) bool {
	return strings.Contains(hint, "```")
}
