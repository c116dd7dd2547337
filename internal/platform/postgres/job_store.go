package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
)

const jobColumns = `id, user_id, type, status, payload, result, error, attempts, max_attempts,
	priority, next_retry_at, created_at, started_at, completed_at, updated_at`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx returns a job store bound to tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx, logger: s.logger, now: s.now}
}

// inTx runs fn inside a transaction. If the store is already bound to a
// transaction fn runs in it; otherwise a new one is started.
func (s *PostgresJobStore) inTx(ctx context.Context, fn func(tx *PostgresJobStore) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(s)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(s.WithTx(tx))
	})
}

// CreateJob implements store.JobStore.CreateJob.
// Admission takes a transaction-scoped advisory lock keyed on the user and
// job type, counts the window and inserts, so concurrent creations for the
// same key serialize and the limit cannot be overshot.
func (s *PostgresJobStore) CreateJob(
	ctx context.Context,
	job *domain.Job,
	limiter *ratelimit.Limiter,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_type", string(job.Type)))
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var created *domain.Job
	err := s.inTx(ctx, func(tx *PostgresJobStore) error {
		if limiter != nil {
			if err := tx.lockWindow(ctx, job.UserID, job.Type); err != nil {
				return fmt.Errorf("%w: %w", ratelimit.ErrUnavailable, err)
			}
			if _, err := limiter.Admit(ctx, tx, job.UserID, job.Type); err != nil {
				return err
			}
		}

		var err error
		created, err = tx.insert(ctx, job)
		return err
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			log.Info("job creation rate limited",
				slog.String("user_id", job.UserID.String()),
				slog.String("job_type", string(job.Type)))
		}
		return nil, err
	}

	log.Debug("job created",
		slog.String("job_id", created.ID.String()),
		slog.String("job_type", string(created.Type)),
		slog.String("user_id", created.UserID.String()))
	return created, nil
}

// CreateJobs implements store.JobStore.CreateJobs.
func (s *PostgresJobStore) CreateJobs(ctx context.Context, jobs []*domain.Job) error {
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}
	return s.inTx(ctx, func(tx *PostgresJobStore) error {
		for _, job := range jobs {
			if _, err := tx.insert(ctx, job); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresJobStore) lockWindow(ctx context.Context, userID uuid.UUID, jobType domain.JobType) error {
	_, err := s.db.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		userID.String()+":"+string(jobType))
	return err
}

func (s *PostgresJobStore) insert(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	now := s.now()
	query := `
		INSERT INTO jobs (id, user_id, type, status, payload, attempts, max_attempts,
			priority, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, 0, $5, $6, $7, $7)
		RETURNING ` + jobColumns

	created, err := scanJob(s.db.QueryRowContext(ctx, query,
		job.ID, job.UserID, job.Type, []byte(job.Payload), job.MaxAttempts, job.Priority, now))
	if err != nil {
		s.logger.Error("failed to insert job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return nil, MapError(err)
	}
	return created, nil
}

// ClaimNextJob implements store.JobStore.ClaimNextJob.
// The inner SELECT skips rows locked by concurrent claimers and the outer
// UPDATE re-checks status, so a job is handed to at most one worker.
func (s *PostgresJobStore) ClaimNextJob(ctx context.Context) (*domain.Job, error) {
	now := s.now()
	query := `
		UPDATE jobs
		SET status = 'processing',
			attempts = attempts + 1,
			started_at = $1,
			next_retry_at = NULL,
			updated_at = $1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
				AND (next_retry_at IS NULL OR next_retry_at <= $1)
				AND attempts < max_attempts
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'pending'
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoJobAvailable
		}
		return nil, fmt.Errorf("failed to claim job: %w", MapError(err))
	}
	return job, nil
}

// UpdateJobStatus implements store.JobStore.UpdateJobStatus.
func (s *PostgresJobStore) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	update store.JobUpdate,
) (*domain.Job, error) {
	var updated *domain.Job
	err := s.inTx(ctx, func(tx *PostgresJobStore) error {
		job, err := scanJob(tx.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapNotFound(err, store.ErrJobNotFound)
		}

		from, fromAttempts := job.Status, job.Attempts
		if err := store.ApplyTransition(job, status, update, tx.now()); err != nil {
			return err
		}

		result, err := tx.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = $1, attempts = $2, result = $3, error = $4, next_retry_at = $5,
				started_at = $6, completed_at = $7, updated_at = $8
			WHERE id = $9 AND status = $10 AND attempts = $11`,
			job.Status, job.Attempts, nullableJSON(job.Result), nullableString(job.Error),
			job.NextRetryAt, job.StartedAt, job.CompletedAt, job.UpdatedAt,
			job.ID, from, fromAttempts)
		if err != nil {
			return MapError(err)
		}
		if err := checkRowsAffected(result, store.ErrInvalidTransition); err != nil {
			return err
		}

		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetJobByID implements store.JobStore.GetJobByID.
func (s *PostgresJobStore) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrJobNotFound)
	}
	return job, nil
}

// ListStaleProcessing implements store.JobStore.ListStaleProcessing.
func (s *PostgresJobStore) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY created_at ASC`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// WindowUsage implements store.JobStore.WindowUsage and ratelimit.UsageCounter.
func (s *PostgresJobStore) WindowUsage(
	ctx context.Context,
	userID uuid.UUID,
	jobType domain.JobType,
	since time.Time,
) (ratelimit.WindowUsage, error) {
	var (
		count  int
		oldest sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM jobs
		WHERE user_id = $1 AND type = $2 AND created_at > $3`,
		userID, jobType, since).Scan(&count, &oldest)
	if err != nil {
		return ratelimit.WindowUsage{}, fmt.Errorf("failed to count jobs in window: %w", MapError(err))
	}

	usage := ratelimit.WindowUsage{Count: count}
	if oldest.Valid {
		usage.Oldest = oldest.Time.UTC()
	}
	return usage, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                               domain.Job
		jobType, status                   string
		payload, result                   []byte
		errMsg                            sql.NullString
		nextRetryAt, startedAt, completed sql.NullTime
	)
	if err := row.Scan(
		&job.ID, &job.UserID, &jobType, &status, &payload, &result, &errMsg,
		&job.Attempts, &job.MaxAttempts, &job.Priority, &nextRetryAt,
		&job.CreatedAt, &startedAt, &completed, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = payload
	if result != nil {
		job.Result = result
	}
	job.Error = errMsg.String
	job.NextRetryAt = timePtr(nextRetryAt)
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completed)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
