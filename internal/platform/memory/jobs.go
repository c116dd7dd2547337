package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// txStore implements the store interfaces on the caller-held lock.
type txStore struct {
	s *Store
}

func (t *txStore) stores() store.Stores {
	return store.Stores{Jobs: t, Goals: t, Messages: t, Hierarchies: t, Nodes: t, Cards: t}
}

func (t *txStore) CreateJob(ctx context.Context, job *domain.Job, limiter *ratelimit.Limiter) (*domain.Job, error) {
	if err := t.checkNewJob(job); err != nil {
		return nil, err
	}

	if limiter != nil {
		if _, err := limiter.Admit(ctx, t, job.UserID, job.Type); err != nil {
			return nil, err
		}
	}

	stored := t.insertJob(job)
	return &stored, nil
}

func (t *txStore) CreateJobs(_ context.Context, jobs []*domain.Job) error {
	for _, job := range jobs {
		if err := t.checkNewJob(job); err != nil {
			return err
		}
		t.insertJob(job)
	}
	return nil
}

func (t *txStore) checkNewJob(job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	if _, exists := t.s.data.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s", store.ErrDuplicate, job.ID)
	}
	return nil
}

func (t *txStore) insertJob(job *domain.Job) domain.Job {
	now := t.s.now()
	stored := *job
	stored.Status = domain.JobStatusPending
	stored.Attempts = 0
	stored.Result = nil
	stored.Error = ""
	stored.NextRetryAt = nil
	stored.StartedAt = nil
	stored.CompletedAt = nil
	stored.CreatedAt = now
	stored.UpdatedAt = now
	t.s.data.jobs[stored.ID] = stored
	return stored
}

func (t *txStore) ClaimNextJob(_ context.Context) (*domain.Job, error) {
	now := t.s.now()

	var best *domain.Job
	for id := range t.s.data.jobs {
		j := t.s.data.jobs[id]
		if !j.Eligible(now) || j.Attempts >= j.MaxAttempts {
			continue
		}
		if best == nil || claimsBefore(&j, best) {
			candidate := j
			best = &candidate
		}
	}

	if best == nil {
		return nil, store.ErrNoJobAvailable
	}

	if err := store.ApplyTransition(best, domain.JobStatusProcessing, store.JobUpdate{}, now); err != nil {
		return nil, err
	}
	t.s.data.jobs[best.ID] = *best
	return best, nil
}

// claimsBefore orders by priority, then creation time, then id so claims
// are deterministic.
func claimsBefore(a, b *domain.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func (t *txStore) UpdateJobStatus(
	_ context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	update store.JobUpdate,
) (*domain.Job, error) {
	job, ok := t.s.data.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if err := store.ApplyTransition(&job, status, update, t.s.now()); err != nil {
		return nil, err
	}
	t.s.data.jobs[id] = job
	return &job, nil
}

func (t *txStore) GetJobByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	job, ok := t.s.data.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &job, nil
}

func (t *txStore) ListStaleProcessing(_ context.Context, olderThan time.Time) ([]*domain.Job, error) {
	return t.listJobs(func(j *domain.Job) bool {
		return j.Status == domain.JobStatusProcessing && j.UpdatedAt.Before(olderThan)
	}), nil
}

func (t *txStore) WindowUsage(
	_ context.Context,
	userID uuid.UUID,
	jobType domain.JobType,
	since time.Time,
) (ratelimit.WindowUsage, error) {
	var usage ratelimit.WindowUsage
	for _, j := range t.s.data.jobs {
		if j.UserID != userID || j.Type != jobType || !j.CreatedAt.After(since) {
			continue
		}
		if usage.Count == 0 || j.CreatedAt.Before(usage.Oldest) {
			usage.Oldest = j.CreatedAt
		}
		usage.Count++
	}
	return usage, nil
}

func (t *txStore) listJobs(keep func(*domain.Job) bool) []*domain.Job {
	out := make([]*domain.Job, 0, len(t.s.data.jobs))
	for id := range t.s.data.jobs {
		j := t.s.data.jobs[id]
		if keep != nil && !keep(&j) {
			continue
		}
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return out
}
