package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// ResilientRuntime wraps a sandbox runtime with resilience patterns from
// fortify. Only transport-level errors are retried; a structured sandbox
// failure is a valid result and passes through untouched.
type ResilientRuntime struct {
	runtime        Runtime
	circuitBreaker circuitbreaker.CircuitBreaker[*domain.RunResult]
	retrier        retry.Retry[*domain.RunResult]
	bulkhead       bulkhead.Bulkhead[*domain.RunResult]
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient runtime wrapper
type ResilientConfig struct {
	// EnableCircuitBreaker enables circuit breaker pattern
	EnableCircuitBreaker bool

	// EnableRetry enables retry with backoff
	EnableRetry bool

	// EnableBulkhead enables concurrency limiting
	EnableBulkhead bool

	// MaxConcurrent for bulkhead (default: 3)
	MaxConcurrent int

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for sandbox resilience
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		MaxConcurrent:        3,
	}
}

// NewResilientRuntime wraps a runtime with resilience patterns using fortify
func NewResilientRuntime(runtime Runtime, cfg ResilientConfig) *ResilientRuntime {
	rr := &ResilientRuntime{
		runtime: runtime,
		logger:  cfg.Logger,
	}

	if cfg.EnableCircuitBreaker {
		rr.circuitBreaker = circuitbreaker.New[*domain.RunResult](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if rr.logger != nil {
					rr.logger.Warn("sandbox circuit breaker state change",
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		rr.retrier = retry.New[*domain.RunResult](retry.Config{
			MaxAttempts:   2,
			InitialDelay:  time.Second,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 3
		}
		rr.bulkhead = bulkhead.New[*domain.RunResult](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 2,
			QueueTimeout:  30 * time.Second,
		})
	}

	return rr
}

// Run executes code against the registered fixture with resilience applied.
func (r *ResilientRuntime) Run(ctx context.Context, problemID, code string) (*domain.RunResult, error) {
	return r.execute(ctx, func(ctx context.Context) (*domain.RunResult, error) {
		return r.runtime.Run(ctx, problemID, code)
	})
}

// RunAgainstFixture executes code against an explicit fixture with
// resilience applied.
func (r *ResilientRuntime) RunAgainstFixture(ctx context.Context, problemID, code string, fixture *domain.Fixture) (*domain.RunResult, error) {
	return r.execute(ctx, func(ctx context.Context) (*domain.RunResult, error) {
		return r.runtime.RunAgainstFixture(ctx, problemID, code, fixture)
	})
}

func (r *ResilientRuntime) execute(ctx context.Context, operation func(context.Context) (*domain.RunResult, error)) (*domain.RunResult, error) {
	if r.bulkhead != nil {
		inner := operation
		operation = func(ctx context.Context) (*domain.RunResult, error) {
			return r.bulkhead.Execute(ctx, inner)
		}
	}

	if r.circuitBreaker != nil && r.retrier != nil {
		return r.circuitBreaker.Execute(ctx, func(ctx context.Context) (*domain.RunResult, error) {
			return r.retrier.Do(ctx, operation)
		})
	}

	if r.circuitBreaker != nil {
		return r.circuitBreaker.Execute(ctx, operation)
	}

	if r.retrier != nil {
		return r.retrier.Do(ctx, operation)
	}

	return operation(ctx)
}
