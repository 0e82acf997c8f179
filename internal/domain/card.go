package domain

// CardSpecification is the authoring record for one exercise version.
// It is produced by the authoring workflow and is read-only to the
// verification pipeline.
type CardSpecification struct {
	ID             string // slug: "tensors/row-softmax"
	ProblemVersion int

	Title              string
	Goal               string
	LearningObjective  string
	ConceptDescription string

	OutputContract      OutputContract
	PassCriteria        PassCriteria
	EvaluationArtifacts EvaluationArtifacts
	Hints               HintTiers
	FidelityTarget      FidelityTarget
	Metadata            AuthoringMetadata
	QualityScorecard    QualityScorecard
	Verification        AuthorVerification
}

// OutputContract declares the shape and semantics of a card's expected output.
type OutputContract struct {
	Shape               string // "[rows, cols]"
	Semantics           string
	NumericalProperties []string
}

// CheckMode identifies how a pass-criteria check compares outputs.
type CheckMode string

const (
	CheckModeShapeGuard       CheckMode = "shape_guard"
	CheckModeExactMatch       CheckMode = "exact_match"
	CheckModeNumericTolerance CheckMode = "numeric_tolerance"
	CheckModePropertyBased    CheckMode = "property_based"
	CheckModeMetamorphic      CheckMode = "metamorphic"
)

// CheckScope identifies which test cases a check applies to.
type CheckScope string

const (
	CheckScopeVisible CheckScope = "visible"
	CheckScopeHidden  CheckScope = "hidden"
	CheckScopeBoth    CheckScope = "both"
)

// CheckOracle identifies what a check compares against.
type CheckOracle string

const (
	OracleReferenceSolution   CheckOracle = "reference_solution"
	OraclePropertyChecker     CheckOracle = "property_checker"
	OracleMetamorphicRelation CheckOracle = "metamorphic_relation"
)

// PassCheck is one entry in a card's ordered pass-criteria check list.
type PassCheck struct {
	Mode        CheckMode
	Scope       CheckScope
	Oracle      CheckOracle
	Description string
	Tolerance   *float64 // required for numeric_tolerance
}

// PassCriteria is the grading contract for a card.
type PassCriteria struct {
	DeterminismMode string
	Checks          []PassCheck
}

// ReferenceSolutionSpec locates a card's reference solution.
type ReferenceSolutionSpec struct {
	Path         string
	FunctionName string
}

// TestDescriptor describes one authored test case.
type TestDescriptor struct {
	ID          string
	Name        string
	Description string
}

// EvaluationArtifacts bundles the artifacts used to grade a card.
type EvaluationArtifacts struct {
	ReferenceSolution    ReferenceSolutionSpec
	VisibleTests         []TestDescriptor
	HiddenTests          []TestDescriptor
	AdversarialTests     []TestDescriptor
	KnownFailurePatterns []string
}

// HintTiers holds the three escalating hint tiers for a card.
// Tier1 nudges, Tier2 narrows, Tier3 may outline the approach.
type HintTiers struct {
	Tier1 string
	Tier2 string
	Tier3 string
}

// FidelityTarget anchors a card to the paper or framework behavior it teaches.
type FidelityTarget struct {
	PaperAnchor            string // URL
	RequiredSemanticChecks []string
	ForbiddenShortcuts     []string
}

// AuthoringMetadata records who authored a card and when.
type AuthoringMetadata struct {
	Author    string
	CreatedAt string
	Source    string
}

// QualityScorecard is the author's 0-5 self-assessment across five dimensions.
type QualityScorecard struct {
	Clarity     int
	Difficulty  int
	Coverage    int
	Fidelity    int
	HintQuality int
}

// AuthorVerification carries the author-asserted verification state.
type AuthorVerification struct {
	Status           string
	Blockers         []string
	Notes            string
	DecisionMetadata AuthorDecisionMetadata
}

// AuthorDecisionMetadata holds author-level decision hints such as the
// approval type to use when a card verifies cleanly.
type AuthorDecisionMetadata struct {
	ApprovalType string
}
