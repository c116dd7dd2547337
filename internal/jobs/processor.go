package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-jobs/internal/config"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/platform/metrics"
	"github.com/phrazzld/scry-jobs/internal/redact"
	"github.com/phrazzld/scry-jobs/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/phrazzld/scry-jobs/internal/jobs"

// finishTimeout bounds the status write after a handler returns. It runs
// detached from the worker context so shutdown does not strand a job in
// processing.
const finishTimeout = 10 * time.Second

// ProcessorConfig holds configuration for the job processor
type ProcessorConfig struct {
	// WorkerCount determines how many concurrent workers claim jobs
	WorkerCount int

	// PollInterval is how often an idle worker looks for work
	PollInterval time.Duration

	// JobTimeout bounds a single handler execution
	JobTimeout time.Duration

	// StuckJobAge defines how long a job can stay in processing before the
	// watchdog requeues or fails it. Must exceed JobTimeout.
	StuckJobAge time.Duration

	// StuckCheckInterval defines how often the watchdog runs
	StuckCheckInterval time.Duration
}

// DefaultProcessorConfig returns a ProcessorConfig with reasonable defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:        2,
		PollInterval:       time.Second,
		JobTimeout:         5 * time.Minute,
		StuckJobAge:        30 * time.Minute,
		StuckCheckInterval: 5 * time.Minute,
	}
}

// ProcessorConfigFrom builds a ProcessorConfig from application configuration.
func ProcessorConfigFrom(cfg config.JobsConfig) ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:        cfg.WorkerCount,
		PollInterval:       cfg.PollInterval(),
		JobTimeout:         cfg.JobTimeout(),
		StuckJobAge:        cfg.StuckJobAge(),
		StuckCheckInterval: cfg.StuckCheckInterval(),
	}
}

// Processor claims jobs from the store and runs them through the registry.
type Processor struct {
	store    store.JobStore
	registry *Registry
	config   ProcessorConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorClock sets the clock used for retry scheduling and the watchdog.
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor. Invalid config values fall back to defaults.
func NewProcessor(
	jobStore store.JobStore,
	registry *Registry,
	cfg ProcessorConfig,
	logger *slog.Logger,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "job_processor"))

	def := DefaultProcessorConfig()
	if cfg.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", cfg.WorkerCount),
			slog.Int("default_count", def.WorkerCount))
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.StuckCheckInterval <= 0 {
		cfg.StuckCheckInterval = def.StuckCheckInterval
	}
	if cfg.StuckJobAge <= cfg.JobTimeout {
		logger.Warn("stuck job age must exceed job timeout, adjusting",
			slog.Duration("stuck_job_age", cfg.StuckJobAge),
			slog.Duration("job_timeout", cfg.JobTimeout))
		cfg.StuckJobAge = 2 * cfg.JobTimeout
	}

	p := &Processor{
		store:    jobStore,
		registry: registry,
		config:   cfg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Processor) Config() ProcessorConfig {
	return p.config
}

// Run starts the workers and the stale-job watchdog and blocks until ctx is
// cancelled. In-flight handlers run to completion before Run returns.
func (p *Processor) Run(ctx context.Context) error {
	if _, err := p.RecoverStale(ctx); err != nil {
		p.logger.Error("initial stale job recovery failed", slog.String("error", err.Error()))
	}

	p.logger.Info("starting job processor",
		slog.Int("worker_count", p.config.WorkerCount),
		slog.Duration("poll_interval", p.config.PollInterval),
		slog.Duration("job_timeout", p.config.JobTimeout))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.worker(gctx, workerID)
			return nil
		})
	}
	g.Go(func() error {
		p.watchdog(gctx)
		return nil
	})

	err := g.Wait()
	p.logger.Info("job processor stopped")
	return err
}

// worker polls for jobs and drains the queue on every tick.
func (p *Processor) worker(ctx context.Context, workerID int) {
	log := p.logger.With(slog.Int("worker_id", workerID))
	log.Debug("starting worker")

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("stopping worker")
			return
		case <-ticker.C:
			for ctx.Err() == nil {
				processed, err := p.ProcessNext(ctx, workerID)
				if err != nil {
					log.Warn("failed to claim job", slog.String("error", err.Error()))
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessNext claims one eligible job and runs it. It reports whether a job
// was processed; an empty queue is not an error.
func (p *Processor) ProcessNext(ctx context.Context, workerID int) (bool, error) {
	job, err := p.store.ClaimNextJob(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoJobAvailable) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	p.execute(ctx, job, workerID)
	return true, nil
}

func (p *Processor) execute(ctx context.Context, job *domain.Job, workerID int) {
	ctx, span := p.tracer.Start(ctx, "jobs.execute", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", string(job.Type)),
		attribute.Int("job.attempt", job.Attempts),
		attribute.Int("worker.id", workerID),
	))
	defer span.End()

	log := p.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.String("user_id", job.UserID.String()),
		slog.Int("worker_id", workerID),
		slog.Int("attempt", job.Attempts),
	)
	log.Info("processing job")

	start := time.Now()
	var result json.RawMessage
	handler, err := p.registry.Get(job.Type)
	if err != nil {
		err = Permanent(err)
	} else {
		result, err = p.runHandler(logger.WithLogger(ctx, log), handler, job)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, redact.Error(err))
	}
	p.finish(ctx, job, result, err, time.Since(start), log)
}

// runHandler invokes h under the job timeout and converts a panic into an
// error. The handler does not observe worker cancellation, so shutdown waits
// for it instead of failing the attempt.
func (p *Processor) runHandler(ctx context.Context, h HandlerFunc, job *domain.Job) (result json.RawMessage, err error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.FromContextOrDefault(ctx, p.logger).Error("job handler panic", slog.Any("panic", r))
			result, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	result, err = h(runCtx, job.Payload, job.UserID)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrJobTimeout, p.config.JobTimeout, err)
	}
	return result, err
}

// finish applies the transition that follows a handler run.
func (p *Processor) finish(
	ctx context.Context,
	job *domain.Job,
	result json.RawMessage,
	runErr error,
	elapsed time.Duration,
	log *slog.Logger,
) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	var (
		status  domain.JobStatus
		update  = store.JobUpdate{ClaimAttempt: job.Attempts}
		outcome string
	)
	switch {
	case runErr == nil:
		status, outcome = domain.JobStatusCompleted, "success"
		update.Result = result
	case IsPermanent(runErr) || job.Attempts >= job.MaxAttempts:
		status, outcome = domain.JobStatusFailed, "failed"
		update.Error = redact.JobError(runErr)
		update.Permanent = IsPermanent(runErr)
	default:
		status, outcome = domain.JobStatusPending, "retry"
		retryAt := p.now().Add(RetryDelay(job.Attempts))
		update.Error = redact.JobError(runErr)
		update.NextRetryAt = &retryAt
	}
	metrics.ObserveHandler(string(job.Type), outcome, elapsed)

	if _, err := p.store.UpdateJobStatus(ctx, job.ID, status, update); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			log.Warn("job claim lost, discarding outcome",
				slog.String("status", string(status)),
				slog.String("error", err.Error()))
			return
		}
		log.Error("failed to update job status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return
	}
	metrics.IncTransition(string(job.Type), string(status))

	switch status {
	case domain.JobStatusCompleted:
		log.Info("job completed", slog.Duration("duration", elapsed))
	case domain.JobStatusFailed:
		log.Error("job failed",
			slog.String("error", update.Error),
			slog.Bool("permanent", update.Permanent),
			slog.Duration("duration", elapsed))
	default:
		log.Warn("job attempt failed, retry scheduled",
			slog.String("error", update.Error),
			slog.Time("next_retry_at", *update.NextRetryAt))
	}
}

// watchdog periodically recovers jobs stuck in processing.
func (p *Processor) watchdog(ctx context.Context) {
	ticker := time.NewTicker(p.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RecoverStale(ctx); err != nil {
				p.logger.Error("failed to check for stuck jobs", slog.String("error", err.Error()))
			}
		}
	}
}

// RecoverStale moves jobs that have been processing longer than StuckJobAge
// back to pending with backoff, or to failed when their attempts are
// exhausted. It returns how many jobs were moved.
func (p *Processor) RecoverStale(ctx context.Context) (int, error) {
	now := p.now()
	stale, err := p.store.ListStaleProcessing(ctx, now.Add(-p.config.StuckJobAge))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	p.logger.Info("found stuck jobs", slog.Int("count", len(stale)))

	msg := fmt.Sprintf("job exceeded %s in processing and was reset", p.config.StuckJobAge)
	recovered := 0
	for _, job := range stale {
		status := domain.JobStatusFailed
		update := store.JobUpdate{Error: msg, ClaimAttempt: job.Attempts}
		if job.Attempts < job.MaxAttempts {
			status = domain.JobStatusPending
			retryAt := now.Add(RetryDelay(job.Attempts))
			update.NextRetryAt = &retryAt
		}

		if _, err := p.store.UpdateJobStatus(ctx, job.ID, status, update); err != nil {
			// The worker may have finished the job since it was listed.
			p.logger.Warn("failed to reset stuck job",
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", string(job.Type)),
				slog.String("error", err.Error()))
			continue
		}
		metrics.IncRecovered(string(status))
		metrics.IncTransition(string(job.Type), string(status))
		p.logger.Info("reset stuck job",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", string(job.Type)),
			slog.String("status", string(status)))
		recovered++
	}
	return recovered, nil
}
