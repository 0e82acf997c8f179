package runtime

import (
	"context"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// Runtime executes solution code out-of-process against deterministic
// fixtures. Sandbox-level failures (bad code, timeouts, resource limits) are
// folded into the RunResult; errors mean the sandbox itself was unreachable.
type Runtime interface {
	Run(ctx context.Context, problemID, code string) (*domain.RunResult, error)
	RunAgainstFixture(ctx context.Context, problemID, code string, fixture *domain.Fixture) (*domain.RunResult, error)
}

// FixtureSource looks up the execution fixture for a problem id.
type FixtureSource interface {
	Fixture(problemID string) (*domain.Fixture, bool)
}

// Config holds sandbox execution settings.
type Config struct {
	Image      string
	MemoryMB   int
	CPULimit   float64
	Timeout    time.Duration
	NetworkOff bool
}

// DefaultConfig returns default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Image:      "tensordrill-sandbox:latest",
		MemoryMB:   256,
		CPULimit:   0.5,
		Timeout:    30 * time.Second,
		NetworkOff: true,
	}
}

// Error codes reported by the sandbox.
const (
	ErrorCodeFixtureNotFound = "fixture_not_found"
	ErrorCodeSandboxError    = "sandbox_error"
	ErrorCodeSandboxTimeout  = "sandbox_timeout"
	ErrorCodeBadOutput       = "malformed_harness_output"
)
