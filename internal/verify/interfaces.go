package verify

import (
	"context"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
	"github.com/felixgeelhaar/tensordrill/internal/leakage"
	"github.com/felixgeelhaar/tensordrill/internal/schema"
)

// SchemaValidator performs structural validation of a card specification.
type SchemaValidator interface {
	Validate(card *domain.CardSpecification) *schema.Validation
}

// Runtime executes code out-of-process against deterministic fixtures.
// Implementations must fold sandbox-level failures (including timeouts) into
// the RunResult rather than returning an error; errors are reserved for
// infrastructure problems reaching the sandbox at all.
type Runtime interface {
	Run(ctx context.Context, problemID, code string) (*domain.RunResult, error)
	RunAgainstFixture(ctx context.Context, problemID, code string, fixture *domain.Fixture) (*domain.RunResult, error)
}

// ReferenceResolver looks up the reference solution source for a card.
type ReferenceResolver interface {
	ReferenceSolution(problemID string) (string, bool)
}

// FixtureResolver looks up the execution fixture for a card.
type FixtureResolver interface {
	Fixture(problemID string) (*domain.Fixture, bool)
}

// HintLinter scores hint tiers against a reference solution.
type HintLinter interface {
	Lint(tier1, tier2, tier3, reference string) *leakage.Report
}
