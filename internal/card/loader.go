package card

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"gopkg.in/yaml.v3"
)

// CardFile is the YAML structure for one authored card specification.
type CardFile struct {
	ID             string `yaml:"id"`
	ProblemVersion int    `yaml:"problem_version"`

	Title              string `yaml:"title"`
	Goal               string `yaml:"goal"`
	LearningObjective  string `yaml:"learning_objective"`
	ConceptDescription string `yaml:"concept_description"`

	OutputContract struct {
		Shape               string   `yaml:"shape"`
		Semantics           string   `yaml:"semantics"`
		NumericalProperties []string `yaml:"numerical_properties"`
	} `yaml:"output_contract"`

	PassCriteria struct {
		DeterminismMode string `yaml:"determinism_mode"`
		Checks          []struct {
			Mode        string   `yaml:"mode"`
			Scope       string   `yaml:"scope"`
			Oracle      string   `yaml:"oracle"`
			Description string   `yaml:"description"`
			Tolerance   *float64 `yaml:"tolerance"`
		} `yaml:"checks"`
	} `yaml:"pass_criteria"`

	EvaluationArtifacts struct {
		ReferenceSolution struct {
			Path         string `yaml:"path"`
			FunctionName string `yaml:"function_name"`
		} `yaml:"reference_solution"`
		VisibleTests         []TestFile `yaml:"visible_tests"`
		HiddenTests          []TestFile `yaml:"hidden_tests"`
		AdversarialTests     []TestFile `yaml:"adversarial_tests"`
		KnownFailurePatterns []string   `yaml:"known_failure_patterns"`
	} `yaml:"evaluation_artifacts"`

	Hints struct {
		Tier1 string `yaml:"tier1"`
		Tier2 string `yaml:"tier2"`
		Tier3 string `yaml:"tier3"`
	} `yaml:"hints"`

	FidelityTarget struct {
		PaperAnchor            string   `yaml:"paper_anchor"`
		RequiredSemanticChecks []string `yaml:"required_semantic_checks"`
		ForbiddenShortcuts     []string `yaml:"forbidden_shortcuts"`
	} `yaml:"fidelity_target"`

	Metadata struct {
		Author    string `yaml:"author"`
		CreatedAt string `yaml:"created_at"`
		Source    string `yaml:"source"`
	} `yaml:"metadata"`

	QualityScorecard struct {
		Clarity     int `yaml:"clarity"`
		Difficulty  int `yaml:"difficulty"`
		Coverage    int `yaml:"coverage"`
		Fidelity    int `yaml:"fidelity"`
		HintQuality int `yaml:"hint_quality"`
	} `yaml:"quality_scorecard"`

	Verification struct {
		Status           string   `yaml:"status"`
		Blockers         []string `yaml:"blockers"`
		Notes            string   `yaml:"notes"`
		DecisionMetadata struct {
			ApprovalType string `yaml:"approval_type"`
		} `yaml:"decision_metadata"`
	} `yaml:"verification"`
}

// TestFile is the YAML structure for one authored test descriptor.
type TestFile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// FixtureFile is the YAML structure for one execution fixture.
type FixtureFile struct {
	ProblemID    string                     `yaml:"problem_id"`
	FunctionName string                     `yaml:"function_name"`
	Inputs       map[string][][]float64     `yaml:"inputs"`
	InputOrder   []string                   `yaml:"input_order"`
	TestCases    []struct {
		ID             string                 `yaml:"id"`
		Name           string                 `yaml:"name"`
		Inputs         map[string][][]float64 `yaml:"inputs"`
		ExpectedOutput [][]float64            `yaml:"expected_output"`
	} `yaml:"test_cases"`
	ExpectedOutput [][]float64 `yaml:"expected_output"`
}

// Loader reads cards, fixtures and reference solutions from a directory tree.
// Cards are "<name>.card.yaml", fixtures "<name>.fixture.yaml"; reference
// solutions are resolved via each card's declared path relative to the base.
type Loader struct {
	basePath string
}

// NewLoader creates a new card loader
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadCards loads every card specification under the base path.
func (l *Loader) LoadCards() ([]*domain.CardSpecification, error) {
	var cards []*domain.CardSpecification

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".card.yaml") {
			return nil
		}

		card, err := l.loadCardFile(path)
		if err != nil {
			return fmt.Errorf("load card %s: %w", path, err)
		}
		cards = append(cards, card)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cards, nil
}

// LoadFixtures loads every fixture under the base path, keyed by problem id.
func (l *Loader) LoadFixtures() (map[string]*domain.Fixture, error) {
	fixtures := make(map[string]*domain.Fixture)

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".fixture.yaml") {
			return nil
		}

		problemID, fixture, err := l.loadFixtureFile(path)
		if err != nil {
			return fmt.Errorf("load fixture %s: %w", path, err)
		}
		fixtures[problemID] = fixture
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fixtures, nil
}

// LoadReferenceSolution reads the reference solution source declared by a card.
func (l *Loader) LoadReferenceSolution(card *domain.CardSpecification) (string, error) {
	path := card.EvaluationArtifacts.ReferenceSolution.Path
	if path == "" {
		return "", domain.ErrReferenceSolutionNotFound
	}

	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Clean(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrReferenceSolutionNotFound
		}
		return "", fmt.Errorf("read reference solution: %w", err)
	}

	return string(data), nil
}

func (l *Loader) loadCardFile(path string) (*domain.CardSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file CardFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if file.ID == "" {
		return nil, fmt.Errorf("card file has no id")
	}

	return fileToCard(&file), nil
}

func (l *Loader) loadFixtureFile(path string) (string, *domain.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	var file FixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", nil, fmt.Errorf("parse yaml: %w", err)
	}

	if file.ProblemID == "" {
		return "", nil, fmt.Errorf("fixture file has no problem_id")
	}

	return file.ProblemID, fileToFixture(&file), nil
}

func fileToCard(file *CardFile) *domain.CardSpecification {
	card := &domain.CardSpecification{
		ID:                 file.ID,
		ProblemVersion:     file.ProblemVersion,
		Title:              file.Title,
		Goal:               file.Goal,
		LearningObjective:  file.LearningObjective,
		ConceptDescription: file.ConceptDescription,
		OutputContract: domain.OutputContract{
			Shape:               file.OutputContract.Shape,
			Semantics:           file.OutputContract.Semantics,
			NumericalProperties: file.OutputContract.NumericalProperties,
		},
		PassCriteria: domain.PassCriteria{
			DeterminismMode: file.PassCriteria.DeterminismMode,
		},
		Hints: domain.HintTiers{
			Tier1: file.Hints.Tier1,
			Tier2: file.Hints.Tier2,
			Tier3: file.Hints.Tier3,
		},
		FidelityTarget: domain.FidelityTarget{
			PaperAnchor:            file.FidelityTarget.PaperAnchor,
			RequiredSemanticChecks: file.FidelityTarget.RequiredSemanticChecks,
			ForbiddenShortcuts:     file.FidelityTarget.ForbiddenShortcuts,
		},
		Metadata: domain.AuthoringMetadata{
			Author:    file.Metadata.Author,
			CreatedAt: file.Metadata.CreatedAt,
			Source:    file.Metadata.Source,
		},
		QualityScorecard: domain.QualityScorecard{
			Clarity:     file.QualityScorecard.Clarity,
			Difficulty:  file.QualityScorecard.Difficulty,
			Coverage:    file.QualityScorecard.Coverage,
			Fidelity:    file.QualityScorecard.Fidelity,
			HintQuality: file.QualityScorecard.HintQuality,
		},
		Verification: domain.AuthorVerification{
			Status:   file.Verification.Status,
			Blockers: file.Verification.Blockers,
			Notes:    file.Verification.Notes,
			DecisionMetadata: domain.AuthorDecisionMetadata{
				ApprovalType: file.Verification.DecisionMetadata.ApprovalType,
			},
		},
	}

	for _, check := range file.PassCriteria.Checks {
		card.PassCriteria.Checks = append(card.PassCriteria.Checks, domain.PassCheck{
			Mode:        domain.CheckMode(check.Mode),
			Scope:       domain.CheckScope(check.Scope),
			Oracle:      domain.CheckOracle(check.Oracle),
			Description: check.Description,
			Tolerance:   check.Tolerance,
		})
	}

	card.EvaluationArtifacts = domain.EvaluationArtifacts{
		ReferenceSolution: domain.ReferenceSolutionSpec{
			Path:         file.EvaluationArtifacts.ReferenceSolution.Path,
			FunctionName: file.EvaluationArtifacts.ReferenceSolution.FunctionName,
		},
		VisibleTests:         fileTests(file.EvaluationArtifacts.VisibleTests),
		HiddenTests:          fileTests(file.EvaluationArtifacts.HiddenTests),
		AdversarialTests:     fileTests(file.EvaluationArtifacts.AdversarialTests),
		KnownFailurePatterns: file.EvaluationArtifacts.KnownFailurePatterns,
	}

	return card
}

func fileTests(tests []TestFile) []domain.TestDescriptor {
	var descriptors []domain.TestDescriptor
	for _, test := range tests {
		descriptors = append(descriptors, domain.TestDescriptor{
			ID:          test.ID,
			Name:        test.Name,
			Description: test.Description,
		})
	}
	return descriptors
}

func fileToFixture(file *FixtureFile) *domain.Fixture {
	fixture := &domain.Fixture{
		FunctionName:   file.FunctionName,
		Inputs:         toMatrices(file.Inputs),
		InputOrder:     file.InputOrder,
		ExpectedOutput: domain.Matrix(file.ExpectedOutput),
	}

	for _, tc := range file.TestCases {
		fixture.TestCases = append(fixture.TestCases, domain.FixtureCase{
			ID:             tc.ID,
			Name:           tc.Name,
			Inputs:         toMatrices(tc.Inputs),
			ExpectedOutput: domain.Matrix(tc.ExpectedOutput),
		})
	}

	return fixture
}

func toMatrices(raw map[string][][]float64) map[string]domain.Matrix {
	if raw == nil {
		return nil
	}
	matrices := make(map[string]domain.Matrix, len(raw))
	for name, values := range raw {
		matrices[name] = domain.Matrix(values)
	}
	return matrices
}
