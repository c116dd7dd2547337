package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-jobs/internal/config"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/jobs/handlers"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/service/auth"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// generator is the full LLM surface the job handlers use.
type generator interface {
	generation.ContentGenerator
	generation.HierarchyGenerator
	generation.DistractorGenerator
}

// appDeps are the externally constructed collaborators of the application.
type appDeps struct {
	Stores     store.Stores
	Transactor store.Transactor
	Generator  generator
}

// application holds the shared dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger

	stores     store.Stores
	jwtService auth.JWTService
	registry   *jobs.Registry
	queue      *jobs.Queue
	processor  *jobs.Processor
}

// newApplication wires the queue, the handler registry and the processor
// over deps.
func newApplication(cfg *config.Config, logger *slog.Logger, deps appDeps) (*application, error) {
	if deps.Stores.Jobs == nil || deps.Transactor == nil || deps.Generator == nil {
		return nil, errors.New("stores, transactor and generator are required")
	}

	app := &application{
		config: cfg,
		logger: logger,
		stores: deps.Stores,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.registry = jobs.NewRegistry()
	if err := handlers.Register(app.registry, handlers.Deps{
		Transactor:  deps.Transactor,
		Stores:      deps.Stores,
		Content:     deps.Generator,
		Hierarchy:   deps.Generator,
		Distractors: deps.Generator,
		Logger:      logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to register job handlers: %w", err)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Policy{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window(),
	})
	app.queue = jobs.NewQueue(deps.Stores, limiter, logger,
		jobs.WithMaxAttempts(cfg.Jobs.DefaultMaxAttempts))

	app.processor = jobs.NewProcessor(deps.Stores.Jobs, app.registry,
		jobs.ProcessorConfigFrom(cfg.Jobs), logger)

	logger.Info("application initialized",
		slog.Int("rate_limit", limiter.Policy().Limit),
		slog.Duration("rate_window", limiter.Policy().Window),
		slog.Int("worker_count", app.processor.Config().WorkerCount))
	return app, nil
}
