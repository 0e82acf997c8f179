package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/tensordrill/internal/card"
	"github.com/felixgeelhaar/tensordrill/internal/config"
	"github.com/felixgeelhaar/tensordrill/internal/daemon"
	"github.com/felixgeelhaar/tensordrill/internal/events"
	"github.com/felixgeelhaar/tensordrill/internal/repository"
	"github.com/felixgeelhaar/tensordrill/internal/review"
	"github.com/felixgeelhaar/tensordrill/internal/runtime"
	"github.com/felixgeelhaar/tensordrill/internal/schema"
	"github.com/felixgeelhaar/tensordrill/internal/storage/sqlite"
	"github.com/felixgeelhaar/tensordrill/internal/verify"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tensordrilld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogging(cfg.Debug)
	slog.SetDefault(logger)

	slog.Info("tensordrilld starting", "version", Version, "port", cfg.Port)

	// Card catalog
	registry := card.NewRegistry(card.NewLoader(cfg.CardsPath))
	if err := registry.Load(); err != nil {
		slog.Warn("card catalog not loaded; verification endpoints will reject unknown cards",
			"path", cfg.CardsPath,
			"error", err,
		)
	} else {
		slog.Info("card catalog loaded", "cards", len(registry.ListCards()))
	}

	// Sandbox runtime
	sandbox, err := runtime.NewDockerRuntime(runtime.Config{
		Image:      cfg.SandboxImage,
		MemoryMB:   cfg.SandboxMemoryMB,
		CPULimit:   cfg.SandboxCPULimit,
		Timeout:    time.Duration(cfg.SandboxTimeout) * time.Second,
		NetworkOff: !cfg.SandboxNetworkOn,
	}, registry, logger)
	if err != nil {
		return fmt.Errorf("sandbox runtime: %w", err)
	}
	defer sandbox.Close()

	resilientCfg := runtime.DefaultResilientConfig()
	resilientCfg.Logger = logger
	resilient := runtime.NewResilientRuntime(sandbox, resilientCfg)

	pipeline := verify.NewPipeline(verify.Dependencies{
		Schema:     schema.NewValidator(),
		Runtime:    resilient,
		References: registry,
		Fixtures:   registry,
	})

	// Review queue, seeded from the last persisted verification snapshot.
	queue := review.NewQueue()
	for _, spec := range registry.ListCards() {
		queue.RegisterProblemVersion(spec.ID, spec.ProblemVersion)
	}
	seeded := 0
	if cfg.SnapshotPath != "" {
		db, err := sqlite.Open(cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer db.Close()

		records, err := sqlite.NewSnapshotStore(db).LoadAll()
		if err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
		if len(records) > 0 {
			queue.Seed(records)
			seeded = len(records)
			slog.Info("review queue seeded", "source", "sqlite", "records", seeded)
		}
	}

	// Postgres catalog mirror and decision log, optional.
	var decisionLog *repository.DecisionRepository
	if cfg.DatabaseEnabled {
		catalogDB, err := repository.Connect(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect card catalog: %w", err)
		}
		defer catalogDB.Close()

		cards := repository.NewCardRepository(catalogDB)
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		for _, spec := range registry.ListCards() {
			if err := cards.Save(syncCtx, spec); err != nil {
				cancel()
				return fmt.Errorf("sync card %s: %w", spec.ID, err)
			}
		}
		cancel()

		pool, err := repository.NewPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect decision log: %w", err)
		}
		defer pool.Close()
		decisionLog = repository.NewDecisionRepository(pool)

		// Fall back to the decision log when no SQLite snapshot exists.
		if seeded == 0 {
			records, err := decisionLog.LatestSnapshot(context.Background())
			if err != nil {
				return fmt.Errorf("load decision snapshot: %w", err)
			}
			if len(records) > 0 {
				queue.Seed(records)
				slog.Info("review queue seeded", "source", "postgres", "records", len(records))
			}
		}

		slog.Info("postgres persistence enabled")
	}

	// Event publication is optional; the gate works standalone without a broker.
	var producer *events.Producer
	if cfg.EventsEnabled {
		conn, err := events.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()
		producer = events.NewProducer(conn, logger)
		slog.Info("event publication enabled")
	}

	server := daemon.NewServer(daemon.ServerConfig{
		Config:    cfg,
		Pipeline:  pipeline,
		Registry:  registry,
		Queue:     queue,
		Producer:  producer,
		Decisions: decisionLog,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("tensordrilld stopped")
	return nil
}

func setupLogging(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if debug {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
