package schema

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// Validation is the structural verdict for one card specification.
type Validation struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// Validator checks card specifications for structural completeness and
// consistency. It is pure and deterministic given the card.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate performs comprehensive structural validation on a card
func (v *Validator) Validate(card *domain.CardSpecification) *Validation {
	validation := &Validation{
		OK:       true,
		Errors:   []string{},
		Warnings: []string{},
	}

	v.checkRequired(card, validation)
	v.checkOutputContract(card, validation)
	v.checkPassCriteria(card, validation)
	v.checkEvaluationArtifacts(card, validation)
	v.checkHints(card, validation)
	v.checkFidelityTarget(card, validation)
	v.checkScorecard(card, validation)

	return validation
}

func (v *Validator) checkRequired(card *domain.CardSpecification, validation *Validation) {
	if card.ID == "" {
		validation.Errors = append(validation.Errors, "card id is required")
		validation.OK = false
	}

	if card.ProblemVersion < 1 {
		validation.Errors = append(validation.Errors, "problem_version must be >= 1")
		validation.OK = false
	}

	if strings.TrimSpace(card.Goal) == "" {
		validation.Errors = append(validation.Errors, "goal is required")
		validation.OK = false
	}

	if strings.TrimSpace(card.LearningObjective) == "" {
		validation.Warnings = append(validation.Warnings, "learning objective is not set")
	}

	if card.Metadata.Author == "" {
		validation.Warnings = append(validation.Warnings, "authoring metadata has no author")
	}
}

func (v *Validator) checkOutputContract(card *domain.CardSpecification, validation *Validation) {
	if card.OutputContract.Shape == "" {
		validation.Errors = append(validation.Errors, "output contract shape is required")
		validation.OK = false
	} else if _, _, err := ParseShape(card.OutputContract.Shape); err != nil {
		validation.Errors = append(validation.Errors,
			fmt.Sprintf("output contract shape is not parseable: %v", err))
		validation.OK = false
	}

	if strings.TrimSpace(card.OutputContract.Semantics) == "" {
		validation.Errors = append(validation.Errors, "output contract semantics is required")
		validation.OK = false
	}
}

func (v *Validator) checkPassCriteria(card *domain.CardSpecification, validation *Validation) {
	checks := card.PassCriteria.Checks

	if len(checks) == 0 {
		validation.Errors = append(validation.Errors, "at least one pass-criteria check is required")
		validation.OK = false
		return
	}

	modes := make(map[domain.CheckMode]bool)
	hiddenCovered := false

	for i, check := range checks {
		modes[check.Mode] = true

		switch check.Mode {
		case domain.CheckModeShapeGuard, domain.CheckModeExactMatch,
			domain.CheckModeNumericTolerance, domain.CheckModePropertyBased,
			domain.CheckModeMetamorphic:
			// valid
		default:
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("check %d has unknown mode: %s", i+1, check.Mode))
			validation.OK = false
		}

		switch check.Scope {
		case domain.CheckScopeVisible, domain.CheckScopeHidden, domain.CheckScopeBoth:
			// valid
		default:
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("check %d has unknown scope: %s", i+1, check.Scope))
			validation.OK = false
		}

		switch check.Oracle {
		case domain.OracleReferenceSolution, domain.OraclePropertyChecker,
			domain.OracleMetamorphicRelation:
			// valid
		default:
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("check %d has unknown oracle: %s", i+1, check.Oracle))
			validation.OK = false
		}

		if check.Mode == domain.CheckModeNumericTolerance && check.Tolerance == nil {
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("check %d uses numeric_tolerance without a tolerance", i+1))
			validation.OK = false
		}

		if check.Scope == domain.CheckScopeHidden || check.Scope == domain.CheckScopeBoth {
			hiddenCovered = true
		}

		if strings.TrimSpace(check.Description) == "" {
			validation.Warnings = append(validation.Warnings,
				fmt.Sprintf("check %d has no description", i+1))
		}
	}

	if len(modes) < 2 {
		validation.Warnings = append(validation.Warnings,
			"pass criteria use a single check mode; consider mixing check kinds")
	}

	if !hiddenCovered {
		validation.Warnings = append(validation.Warnings,
			"no pass-criteria check covers hidden test cases")
	}

	if card.PassCriteria.DeterminismMode == "" {
		validation.Warnings = append(validation.Warnings, "determinism mode is not set")
	}
}

func (v *Validator) checkEvaluationArtifacts(card *domain.CardSpecification, validation *Validation) {
	ref := card.EvaluationArtifacts.ReferenceSolution

	if ref.Path == "" {
		validation.Errors = append(validation.Errors, "reference solution path is required")
		validation.OK = false
	}

	if ref.FunctionName == "" {
		validation.Errors = append(validation.Errors, "reference solution function name is required")
		validation.OK = false
	}

	if len(card.EvaluationArtifacts.VisibleTests) == 0 {
		validation.Errors = append(validation.Errors, "at least one visible test is required")
		validation.OK = false
	}

	if len(card.EvaluationArtifacts.HiddenTests) == 0 {
		validation.Warnings = append(validation.Warnings, "card has no hidden tests")
	}

	if len(card.EvaluationArtifacts.AdversarialTests) == 0 {
		validation.Warnings = append(validation.Warnings, "card has no adversarial tests")
	}
}

func (v *Validator) checkHints(card *domain.CardSpecification, validation *Validation) {
	tiers := []struct {
		name string
		text string
	}{
		{"tier 1", card.Hints.Tier1},
		{"tier 2", card.Hints.Tier2},
		{"tier 3", card.Hints.Tier3},
	}

	for _, tier := range tiers {
		if strings.TrimSpace(tier.text) == "" {
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("hint %s is empty", tier.name))
			validation.OK = false
		}
	}
}

func (v *Validator) checkFidelityTarget(card *domain.CardSpecification, validation *Validation) {
	anchor := card.FidelityTarget.PaperAnchor

	if anchor == "" {
		validation.Warnings = append(validation.Warnings, "fidelity target has no paper anchor")
	} else if !isValidURL(anchor) {
		validation.Errors = append(validation.Errors,
			fmt.Sprintf("fidelity target paper anchor is not a valid URL: %s", anchor))
		validation.OK = false
	}

	if len(card.FidelityTarget.RequiredSemanticChecks) == 0 {
		validation.Warnings = append(validation.Warnings,
			"fidelity target has no required semantic checks")
	}
}

func (v *Validator) checkScorecard(card *domain.CardSpecification, validation *Validation) {
	dims := []struct {
		name  string
		score int
	}{
		{"clarity", card.QualityScorecard.Clarity},
		{"difficulty", card.QualityScorecard.Difficulty},
		{"coverage", card.QualityScorecard.Coverage},
		{"fidelity", card.QualityScorecard.Fidelity},
		{"hint_quality", card.QualityScorecard.HintQuality},
	}

	for _, dim := range dims {
		if dim.score < 0 || dim.score > 5 {
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("scorecard %s is out of range: %d", dim.name, dim.score))
			validation.OK = false
			continue
		}
		if dim.score <= 2 {
			validation.Warnings = append(validation.Warnings,
				fmt.Sprintf("scorecard %s is low: %d", dim.name, dim.score))
		}
	}
}

// Helper functions

func isValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
