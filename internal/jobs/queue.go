package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/platform/metrics"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// Queue creates and inspects jobs on behalf of users.
type Queue struct {
	stores      store.Stores
	limiter     *ratelimit.Limiter
	maxAttempts int
	logger      *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMaxAttempts sets the max attempts given to new jobs.
func WithMaxAttempts(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// NewQueue creates a Queue over stores. Jobs are admitted through limiter.
func NewQueue(stores store.Stores, limiter *ratelimit.Limiter, logger *slog.Logger, opts ...QueueOption) *Queue {
	if stores.Jobs == nil {
		panic("job store cannot be nil")
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultPolicy())
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		stores:      stores,
		limiter:     limiter,
		maxAttempts: domain.DefaultMaxAttempts,
		logger:      logger.With(slog.String("component", "job_queue")),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// CreateJob validates and enqueues a job for userID.
//
// It returns an error wrapping domain.ErrValidation for a bad type, payload
// or priority, a *ratelimit.ExceededError when the user's window is full,
// and a store not-found error when the payload references an entity the
// user does not own. The limiter is consulted before any entity lookup and
// again inside the insert transaction. Nothing is inserted on error.
func (q *Queue) CreateJob(
	ctx context.Context,
	jobType domain.JobType,
	userID uuid.UUID,
	payload json.RawMessage,
	priority int,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	job, err := domain.NewJob(userID, jobType, payload, priority)
	if err != nil {
		return nil, err
	}
	job.MaxAttempts = q.maxAttempts

	parsed, err := ParsePayload(jobType, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if _, err := q.limiter.Admit(ctx, q.stores.Jobs, userID, jobType); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			metrics.IncRateLimited(string(jobType))
		}
		return nil, err
	}
	if err := q.checkOwnership(ctx, userID, parsed); err != nil {
		log.Debug("job references entity not owned by user",
			slog.String("job_type", string(jobType)),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	created, err := q.stores.Jobs.CreateJob(ctx, job, q.limiter)
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			metrics.IncRateLimited(string(jobType))
		}
		return nil, err
	}

	metrics.IncJobCreated(string(jobType), "api")
	log.Info("job created",
		slog.String("job_id", created.ID.String()),
		slog.String("job_type", string(created.Type)),
		slog.String("user_id", userID.String()),
		slog.Int("priority", created.Priority))
	return created, nil
}

// checkOwnership resolves every entity the payload references and returns
// the matching not-found error if it is missing or owned by someone else.
func (q *Queue) checkOwnership(ctx context.Context, userID uuid.UUID, p Payload) error {
	switch p := p.(type) {
	case *ContentGenerationPayload:
		if p.NodeID != nil {
			node, err := q.stores.Nodes.GetNode(ctx, *p.NodeID)
			if err != nil {
				return err
			}
			if node.UserID != userID {
				return store.ErrNodeNotFound
			}
			return nil
		}
		msg, err := q.stores.Messages.GetMessage(ctx, *p.MessageID)
		if err != nil {
			return err
		}
		if msg.UserID != userID {
			return store.ErrMessageNotFound
		}
	case *HierarchyGenerationPayload:
		goal, err := q.stores.Goals.GetGoal(ctx, p.GoalID)
		if err != nil {
			return err
		}
		if goal.UserID != userID {
			return store.ErrGoalNotFound
		}
	case *DistractorGenerationPayload:
		card, err := q.stores.Cards.GetCard(ctx, p.CardID)
		if err != nil {
			return err
		}
		if card.UserID != userID {
			return store.ErrCardNotFound
		}
	}
	return nil
}

// GetJob returns the job if it belongs to userID. Jobs owned by other users
// are reported as store.ErrJobNotFound.
func (q *Queue) GetJob(ctx context.Context, id, userID uuid.UUID) (*domain.Job, error) {
	job, err := q.stores.Jobs.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

// CheckRateLimit reports the user's current admission decision for jobType
// without creating anything.
func (q *Queue) CheckRateLimit(ctx context.Context, userID uuid.UUID, jobType domain.JobType) (ratelimit.Decision, error) {
	if !jobType.Valid() {
		return ratelimit.Decision{}, fmt.Errorf("%w: %w: %q", domain.ErrValidation, domain.ErrInvalidJobType, jobType)
	}
	return q.limiter.CheckRateLimit(ctx, q.stores.Jobs, userID, jobType)
}

// Limiter returns the queue's rate limiter.
func (q *Queue) Limiter() *ratelimit.Limiter {
	return q.limiter
}
