package leakage

import (
	"testing"
)

const testReference = `def scale_rows(matrix, factors):
    scaled = [[value * factor for value in row] for row, factor in zip(matrix, factors)]
    return scaled
`

// overlapHint shares roughly 60% of the reference token set without any
// executable code indicators.
const overlapHint = "For each row in the matrix, pair the value with its factor using zip"

func hasIssue(report *Report, code string) bool {
	for _, issue := range report.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func TestLint_CleanHints(t *testing.T) {
	linter := NewLinter()

	report := linter.Lint(
		"Think about what happens to one entry.",
		"Each output entry depends only on its own input entry.",
		"Walk the input entry by entry and build the output as you go.",
		testReference,
	)

	if !report.OK {
		t.Errorf("clean hints flagged: %+v", report.Issues)
	}
	if len(report.Issues) != 0 {
		t.Errorf("issues = %v; want none", report.Issues)
	}
}

func TestLint_Tier1CodeIndicators(t *testing.T) {
	linter := NewLinter()

	tests := []struct {
		name string
		hint string
	}{
		{"return statement", "just return the transposed matrix"},
		{"assignment", "set out = buildOutput first"},
		{"library call", "torch.matmul(a, b) does this in one step"},
		{"function definition", "def scale(m): is the shape you want"},
		{"fenced code block", "```\nsome code\n```"},
		{"bare pass", "start with\npass\nand fill it in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := linter.Lint(tt.hint, "", "", testReference)
			if report.OK {
				t.Error("expected a blocker")
			}
			if !hasIssue(report, "TIER1_CODE_LEAK") {
				t.Errorf("issues = %v; want TIER1_CODE_LEAK", report.Issues)
			}
		})
	}
}

func TestLint_Tier1Overlap(t *testing.T) {
	linter := NewLinter()

	report := linter.Lint(overlapHint, "", "", testReference)
	if report.OK {
		t.Fatal("expected a blocker for high tier 1 overlap")
	}
	if !hasIssue(report, "TIER1_REFERENCE_OVERLAP") {
		t.Errorf("issues = %v; want TIER1_REFERENCE_OVERLAP", report.Issues)
	}
}

func TestLint_HigherTiersTolerateModerateOverlap(t *testing.T) {
	linter := NewLinter()

	// The same wording that blocks tier 1 stays under the looser tier 2 and
	// tier 3 thresholds.
	report := linter.Lint("", overlapHint, overlapHint, testReference)
	if !report.OK {
		t.Errorf("moderate overlap blocked at a higher tier: %+v", report.Issues)
	}
}

func TestLint_Tier2FunctionDefinition(t *testing.T) {
	linter := NewLinter()

	report := linter.Lint("", "write def scale_rows(matrix, factors): and go from there", "", testReference)
	if report.OK {
		t.Fatal("expected a blocker")
	}
	if !hasIssue(report, "TIER2_DIRECT_ANSWER") {
		t.Errorf("issues = %v; want TIER2_DIRECT_ANSWER", report.Issues)
	}
}

func TestLint_Tier3FullSolutionLeak(t *testing.T) {
	linter := NewLinter()

	report := linter.Lint("", "", "```python\nprint('answer')\n```", testReference)
	if report.OK {
		t.Fatal("expected a blocker")
	}
	if !hasIssue(report, "TIER3_FULL_SOLUTION_LEAK") {
		t.Errorf("issues = %v; want TIER3_FULL_SOLUTION_LEAK", report.Issues)
	}
}

func TestLint_VerbatimLineBlocksTier1(t *testing.T) {
	linter := NewLinter()

	// Quotes a full reference line longer than the verbatim threshold.
	hint := "the middle is literally: scaled = [[value * factor for value in row] for row, factor in zip(matrix, factors)]"
	report := linter.Lint(hint, "", "", testReference)
	if report.OK {
		t.Fatal("expected a blocker")
	}
	if !hasIssue(report, "TIER1_REFERENCE_OVERLAP") {
		t.Errorf("issues = %v; want TIER1_REFERENCE_OVERLAP", report.Issues)
	}
}

func TestTokenOverlapRatio(t *testing.T) {
	tests := []struct {
		name      string
		hint      string
		reference string
		want      float64
	}{
		{"empty reference", "anything", "", 0},
		{"no shared tokens", "alpha beta", "gamma delta", 0},
		{"full overlap", "gamma delta", "gamma delta", 1},
		{"half overlap", "gamma", "gamma delta", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenOverlapRatio(tt.hint, tt.reference); got != tt.want {
				t.Errorf("tokenOverlapRatio = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestVerbatimLineHits_IgnoresShortLines(t *testing.T) {
	reference := "short line\nthis reference line is definitely long enough to count\n"
	hint := "short line plus this reference line is definitely long enough to count"

	if hits := verbatimLineHits(hint, reference); hits != 1 {
		t.Errorf("hits = %d; want 1 (short lines excluded)", hits)
	}
}
