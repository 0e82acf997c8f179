package schema

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

func wellFormedCard() *domain.CardSpecification {
	tolerance := 1e-6
	return &domain.CardSpecification{
		ID:                 "tensors/row-softmax",
		ProblemVersion:     2,
		Title:              "Row-wise softmax",
		Goal:               "Reproduce PyTorch softmax over each row",
		LearningObjective:  "Understand normalization along an axis",
		ConceptDescription: "Each row is exponentiated and normalized to sum to one",
		OutputContract: domain.OutputContract{
			Shape:     "[3, 4]",
			Semantics: "each output row sums to one",
		},
		PassCriteria: domain.PassCriteria{
			DeterminismMode: "deterministic",
			Checks: []domain.PassCheck{
				{Mode: domain.CheckModeShapeGuard, Scope: domain.CheckScopeBoth, Oracle: domain.OracleReferenceSolution, Description: "shape preserved"},
				{Mode: domain.CheckModeNumericTolerance, Scope: domain.CheckScopeHidden, Oracle: domain.OracleReferenceSolution, Description: "rows sum to one", Tolerance: &tolerance},
			},
		},
		EvaluationArtifacts: domain.EvaluationArtifacts{
			ReferenceSolution: domain.ReferenceSolutionSpec{
				Path:         "solutions/row_softmax.py",
				FunctionName: "row_softmax",
			},
			VisibleTests:     []domain.TestDescriptor{{ID: "t1", Name: "basic"}},
			HiddenTests:      []domain.TestDescriptor{{ID: "h1", Name: "hidden"}},
			AdversarialTests: []domain.TestDescriptor{{ID: "a1", Name: "large values"}},
		},
		Hints: domain.HintTiers{
			Tier1: "Think about what each row must add up to.",
			Tier2: "Normalize each row by the sum of its exponentials.",
			Tier3: "Exponentiate every entry, then divide each by its row total.",
		},
		FidelityTarget: domain.FidelityTarget{
			PaperAnchor:            "https://example.com/softmax",
			RequiredSemanticChecks: []string{"rows sum to one"},
		},
		Metadata: domain.AuthoringMetadata{Author: "curriculum-team"},
		QualityScorecard: domain.QualityScorecard{
			Clarity: 4, Difficulty: 3, Coverage: 4, Fidelity: 5, HintQuality: 4,
		},
	}
}

func containsSubstring(messages []string, want string) bool {
	for _, msg := range messages {
		if strings.Contains(msg, want) {
			return true
		}
	}
	return false
}

func TestValidate_WellFormedCard(t *testing.T) {
	validation := NewValidator().Validate(wellFormedCard())

	if !validation.OK {
		t.Fatalf("errors = %v; want none", validation.Errors)
	}
	if len(validation.Errors) != 0 {
		t.Errorf("errors = %v; want none", validation.Errors)
	}
	if len(validation.Warnings) != 0 {
		t.Errorf("warnings = %v; want none", validation.Warnings)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CardSpecification)
		wantMsg string
	}{
		{"missing id", func(c *domain.CardSpecification) { c.ID = "" }, "card id is required"},
		{"zero version", func(c *domain.CardSpecification) { c.ProblemVersion = 0 }, "problem_version"},
		{"missing goal", func(c *domain.CardSpecification) { c.Goal = "  " }, "goal is required"},
		{"missing shape", func(c *domain.CardSpecification) { c.OutputContract.Shape = "" }, "shape is required"},
		{"malformed shape", func(c *domain.CardSpecification) { c.OutputContract.Shape = "3x4" }, "not parseable"},
		{"missing semantics", func(c *domain.CardSpecification) { c.OutputContract.Semantics = "" }, "semantics is required"},
		{"no checks", func(c *domain.CardSpecification) { c.PassCriteria.Checks = nil }, "at least one pass-criteria check"},
		{"unknown check mode", func(c *domain.CardSpecification) { c.PassCriteria.Checks[0].Mode = "fuzzy" }, "unknown mode"},
		{"unknown check scope", func(c *domain.CardSpecification) { c.PassCriteria.Checks[0].Scope = "secret" }, "unknown scope"},
		{"unknown check oracle", func(c *domain.CardSpecification) { c.PassCriteria.Checks[0].Oracle = "gut feeling" }, "unknown oracle"},
		{"tolerance check without tolerance", func(c *domain.CardSpecification) { c.PassCriteria.Checks[1].Tolerance = nil }, "without a tolerance"},
		{"missing reference path", func(c *domain.CardSpecification) { c.EvaluationArtifacts.ReferenceSolution.Path = "" }, "path is required"},
		{"missing function name", func(c *domain.CardSpecification) { c.EvaluationArtifacts.ReferenceSolution.FunctionName = "" }, "function name is required"},
		{"no visible tests", func(c *domain.CardSpecification) { c.EvaluationArtifacts.VisibleTests = nil }, "at least one visible test"},
		{"empty hint tier", func(c *domain.CardSpecification) { c.Hints.Tier2 = "" }, "hint tier 2 is empty"},
		{"bad anchor url", func(c *domain.CardSpecification) { c.FidelityTarget.PaperAnchor = "notes.txt" }, "not a valid URL"},
		{"scorecard too high", func(c *domain.CardSpecification) { c.QualityScorecard.Clarity = 6 }, "out of range"},
		{"scorecard negative", func(c *domain.CardSpecification) { c.QualityScorecard.Coverage = -1 }, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := wellFormedCard()
			tt.mutate(card)

			validation := NewValidator().Validate(card)
			if validation.OK {
				t.Fatal("expected validation failure")
			}
			if !containsSubstring(validation.Errors, tt.wantMsg) {
				t.Errorf("errors = %v; want one containing %q", validation.Errors, tt.wantMsg)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CardSpecification)
		wantMsg string
	}{
		{"no learning objective", func(c *domain.CardSpecification) { c.LearningObjective = "" }, "learning objective"},
		{"no author", func(c *domain.CardSpecification) { c.Metadata.Author = "" }, "no author"},
		{"no determinism mode", func(c *domain.CardSpecification) { c.PassCriteria.DeterminismMode = "" }, "determinism mode"},
		{"check without description", func(c *domain.CardSpecification) { c.PassCriteria.Checks[0].Description = "" }, "no description"},
		{"no hidden coverage", func(c *domain.CardSpecification) {
			c.PassCriteria.Checks[0].Scope = domain.CheckScopeVisible
			c.PassCriteria.Checks[1].Scope = domain.CheckScopeVisible
		}, "covers hidden"},
		{"no hidden tests", func(c *domain.CardSpecification) { c.EvaluationArtifacts.HiddenTests = nil }, "no hidden tests"},
		{"no adversarial tests", func(c *domain.CardSpecification) { c.EvaluationArtifacts.AdversarialTests = nil }, "no adversarial tests"},
		{"no paper anchor", func(c *domain.CardSpecification) { c.FidelityTarget.PaperAnchor = "" }, "no paper anchor"},
		{"no required checks", func(c *domain.CardSpecification) { c.FidelityTarget.RequiredSemanticChecks = nil }, "no required semantic checks"},
		{"low scorecard dimension", func(c *domain.CardSpecification) { c.QualityScorecard.HintQuality = 2 }, "is low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := wellFormedCard()
			tt.mutate(card)

			validation := NewValidator().Validate(card)
			if !validation.OK {
				t.Fatalf("errors = %v; want warnings only", validation.Errors)
			}
			if !containsSubstring(validation.Warnings, tt.wantMsg) {
				t.Errorf("warnings = %v; want one containing %q", validation.Warnings, tt.wantMsg)
			}
		})
	}
}

func TestValidate_SingleCheckModeWarns(t *testing.T) {
	card := wellFormedCard()
	card.PassCriteria.Checks = card.PassCriteria.Checks[:1]

	validation := NewValidator().Validate(card)
	if !validation.OK {
		t.Fatalf("errors = %v; want warnings only", validation.Errors)
	}
	if !containsSubstring(validation.Warnings, "single check mode") {
		t.Errorf("warnings = %v; want single-mode warning", validation.Warnings)
	}
}
