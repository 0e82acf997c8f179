package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/card"
	"github.com/felixgeelhaar/tensordrill/internal/config"
	"github.com/felixgeelhaar/tensordrill/internal/review"
	"github.com/felixgeelhaar/tensordrill/internal/runtime"
	"github.com/felixgeelhaar/tensordrill/internal/schema"
	"github.com/felixgeelhaar/tensordrill/internal/verify"
)

// stack bundles the in-process collaborators the verification commands need.
// The flag/status/queue commands talk to the daemon instead, so the review
// queue here starts empty.
type stack struct {
	cfg      *config.Config
	registry *card.Registry
	pipeline *verify.Pipeline
	queue    *review.Queue
	sandbox  *runtime.DockerRuntime
}

func buildStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	registry := card.NewRegistry(card.NewLoader(cfg.CardsPath))
	if err := registry.Load(); err != nil {
		return nil, fmt.Errorf("load card catalog from %s: %w", cfg.CardsPath, err)
	}

	sandbox, err := runtime.NewDockerRuntime(runtime.Config{
		Image:      cfg.SandboxImage,
		MemoryMB:   cfg.SandboxMemoryMB,
		CPULimit:   cfg.SandboxCPULimit,
		Timeout:    time.Duration(cfg.SandboxTimeout) * time.Second,
		NetworkOff: !cfg.SandboxNetworkOn,
	}, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("sandbox runtime: %w", err)
	}

	resilientCfg := runtime.DefaultResilientConfig()
	resilientCfg.Logger = logger

	pipeline := verify.NewPipeline(verify.Dependencies{
		Schema:     schema.NewValidator(),
		Runtime:    runtime.NewResilientRuntime(sandbox, resilientCfg),
		References: registry,
		Fixtures:   registry,
	})

	queue := review.NewQueue()
	for _, spec := range registry.ListCards() {
		queue.RegisterProblemVersion(spec.ID, spec.ProblemVersion)
	}

	return &stack{
		cfg:      cfg,
		registry: registry,
		pipeline: pipeline,
		queue:    queue,
		sandbox:  sandbox,
	}, nil
}

func (s *stack) Close() {
	if s.sandbox != nil {
		_ = s.sandbox.Close()
	}
}
