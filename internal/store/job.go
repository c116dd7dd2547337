package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
)

// JobUpdate carries the fields written alongside a status change.
//
// Result is stored on completion. Error is stored on retry and failure.
// NextRetryAt is stored on retry. Permanent marks a failure that may end
// the job before its attempts are exhausted. ClaimAttempt, when non-zero,
// fences the update to the claim that moved the job to processing at that
// attempt; any other state fails with ErrClaimLost.
type JobUpdate struct {
	Result       json.RawMessage
	Error        string
	NextRetryAt  *time.Time
	Permanent    bool
	ClaimAttempt int
}

// JobStore is the durable job queue.
type JobStore interface {
	// CreateJob inserts job as pending with zero attempts. When limiter is
	// non-nil, admission is evaluated against the store's own window usage
	// in the same transaction as the insert; a denial returns a
	// *ratelimit.ExceededError and inserts nothing.
	CreateJob(ctx context.Context, job *domain.Job, limiter *ratelimit.Limiter) (*domain.Job, error)

	// CreateJobs inserts jobs as pending without rate-limit admission.
	// Used by fan-out inside a handler's transaction.
	CreateJobs(ctx context.Context, jobs []*domain.Job) error

	// ClaimNextJob atomically moves the best eligible pending job to
	// processing. Order is priority ascending, then created_at ascending.
	// Returns ErrNoJobAvailable when nothing is eligible.
	ClaimNextJob(ctx context.Context) (*domain.Job, error)

	// UpdateJobStatus applies a state machine transition. Returns
	// ErrInvalidTransition if the change is illegal from the current state,
	// ErrClaimLost if update.ClaimAttempt no longer matches the job, and
	// ErrJobNotFound if the job does not exist.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, update JobUpdate) (*domain.Job, error)

	// GetJobByID returns the job or ErrJobNotFound.
	GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListStaleProcessing returns processing jobs last updated before olderThan.
	ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*domain.Job, error)

	// WindowUsage counts jobs of jobType created by userID strictly after since.
	WindowUsage(ctx context.Context, userID uuid.UUID, jobType domain.JobType, since time.Time) (ratelimit.WindowUsage, error)
}
