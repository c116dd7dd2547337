package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/memory"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock shared by the store and limiter.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newJob(t *testing.T, userID uuid.UUID, jobType domain.JobType, priority int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(userID, jobType, json.RawMessage(`{"topic":"go"}`), priority)
	require.NoError(t, err)
	return job
}

func TestCreateJobStoresPending(t *testing.T) {
	clock := newTestClock()
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	job := newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0)
	job.Attempts = 2

	stored, err := s.CreateJob(ctx, job, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
	assert.Equal(t, clock.Now(), stored.CreatedAt)

	got, err := s.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	_, err = s.CreateJob(ctx, job, nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = s.GetJobByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestClaimNextJobOrdering(t *testing.T) {
	clock := newTestClock()
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()
	userID := uuid.New()

	low := newJob(t, userID, domain.JobTypeContentGeneration, 5)
	_, err := s.CreateJob(ctx, low, nil)
	require.NoError(t, err)
	clock.Advance(time.Second)

	first := newJob(t, userID, domain.JobTypeContentGeneration, 0)
	_, err = s.CreateJob(ctx, first, nil)
	require.NoError(t, err)
	clock.Advance(time.Second)

	second := newJob(t, userID, domain.JobTypeContentGeneration, 0)
	_, err = s.CreateJob(ctx, second, nil)
	require.NoError(t, err)

	var order []uuid.UUID
	for i := 0; i < 3; i++ {
		claimed, err := s.ClaimNextJob(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, claimed.Status)
		assert.Equal(t, 1, claimed.Attempts)
		assert.NotNil(t, claimed.StartedAt)
		order = append(order, claimed.ID)
	}
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, low.ID}, order)

	_, err = s.ClaimNextJob(ctx)
	assert.ErrorIs(t, err, store.ErrNoJobAvailable)
}

func TestClaimNextJobRespectsNextRetryAt(t *testing.T) {
	clock := newTestClock()
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	job := newJob(t, uuid.New(), domain.JobTypeHierarchyGeneration, 0)
	_, err := s.CreateJob(ctx, job, nil)
	require.NoError(t, err)

	claimed, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)

	retryAt := clock.Now().Add(2 * time.Second)
	_, err = s.UpdateJobStatus(ctx, claimed.ID, domain.JobStatusPending,
		store.JobUpdate{Error: "upstream timeout", NextRetryAt: &retryAt})
	require.NoError(t, err)

	_, err = s.ClaimNextJob(ctx)
	assert.ErrorIs(t, err, store.ErrNoJobAvailable)

	clock.Advance(2 * time.Second)
	again, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempts)
	assert.Equal(t, "upstream timeout", again.Error)
}

func TestConcurrentClaimsNeverShareAJob(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		_, err := s.CreateJob(ctx, newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0), nil)
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.ClaimNextJob(ctx)
				if errors.Is(err, store.ErrNoJobAvailable) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobs)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestUpdateJobStatusRejectsIllegalTransitions(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	job := newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0)
	_, err := s.CreateJob(ctx, job, nil)
	require.NoError(t, err)

	_, err = s.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted, store.JobUpdate{})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.UpdateJobStatus(ctx, uuid.New(), domain.JobStatusCompleted, store.JobUpdate{})
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	_, err = s.ClaimNextJob(ctx)
	require.NoError(t, err)

	done, err := s.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted,
		store.JobUpdate{Result: json.RawMessage(`{"count":2}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(done.Result))

	_, err = s.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, store.JobUpdate{Permanent: true})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestCreateJobRateLimit(t *testing.T) {
	clock := newTestClock()
	s := memory.New(memory.WithClock(clock.Now))
	limiter := ratelimit.NewLimiter(ratelimit.DefaultPolicy()).WithClock(clock.Now)
	ctx := context.Background()
	userID := uuid.New()

	start := clock.Now()
	for i := 0; i < 20; i++ {
		_, err := s.CreateJob(ctx, newJob(t, userID, domain.JobTypeContentGeneration, 0), limiter)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	_, err := s.CreateJob(ctx, newJob(t, userID, domain.JobTypeContentGeneration, 0), limiter)
	var exceeded *ratelimit.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 0, exceeded.Remaining)
	assert.Equal(t, start.Add(time.Hour), exceeded.ResetAt)
	assert.Len(t, s.ListJobs(), 20)

	// Other job types and other users have their own windows.
	_, err = s.CreateJob(ctx, newJob(t, userID, domain.JobTypeHierarchyGeneration, 0), limiter)
	assert.NoError(t, err)
	_, err = s.CreateJob(ctx, newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0), limiter)
	assert.NoError(t, err)

	// One hour after the oldest job it leaves the window.
	clock.Advance(start.Add(time.Hour).Sub(clock.Now()))
	_, err = s.CreateJob(ctx, newJob(t, userID, domain.JobTypeContentGeneration, 0), limiter)
	assert.NoError(t, err)
}

func TestCreateJobRateLimitIsAtomic(t *testing.T) {
	s := memory.New()
	limiter := ratelimit.NewLimiter(ratelimit.DefaultPolicy())
	ctx := context.Background()
	userID := uuid.New()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		denied   int
	)
	for i := 0; i < 35; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := domain.NewJob(userID, domain.JobTypeContentGeneration, json.RawMessage(`{}`), 0)
			if !assert.NoError(t, err) {
				return
			}
			_, err = s.CreateJob(ctx, job, limiter)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
				denied++
			} else if assert.NoError(t, err) {
				accepted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, accepted)
	assert.Equal(t, 15, denied)
}

func TestWithinTxRollsBack(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	userID := uuid.New()

	goal := &domain.Goal{ID: uuid.New(), UserID: userID, Title: "Learn Go"}
	require.NoError(t, s.CreateGoal(ctx, goal))

	h, err := domain.NewHierarchy(userID, goal.ID, "Go", "")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		if err := tx.Hierarchies.CreateHierarchy(ctx, h); err != nil {
			return err
		}
		node := &domain.Node{ID: uuid.New(), HierarchyID: h.ID, UserID: userID, Title: "Goroutines"}
		if err := tx.Nodes.CreateNodes(ctx, []*domain.Node{node}); err != nil {
			return err
		}
		if err := tx.Jobs.CreateJobs(ctx, []*domain.Job{newJob(t, userID, domain.JobTypeContentGeneration, 0)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetHierarchy(ctx, h.ID)
	assert.ErrorIs(t, err, store.ErrHierarchyNotFound)
	nodes, err := s.ListNodes(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, s.ListJobs())

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		return tx.Hierarchies.CreateHierarchy(ctx, h)
	})
	require.NoError(t, err)
	_, err = s.GetHierarchy(ctx, h.ID)
	assert.NoError(t, err)
}

func TestListStaleProcessing(t *testing.T) {
	clock := newTestClock()
	s := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	stale := newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0)
	_, err := s.CreateJob(ctx, stale, nil)
	require.NoError(t, err)
	_, err = s.ClaimNextJob(ctx)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	fresh := newJob(t, uuid.New(), domain.JobTypeContentGeneration, 0)
	_, err = s.CreateJob(ctx, fresh, nil)
	require.NoError(t, err)
	_, err = s.ClaimNextJob(ctx)
	require.NoError(t, err)

	jobs, err := s.ListStaleProcessing(ctx, clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stale.ID, jobs[0].ID)
}

func TestCardsAndNodeCounts(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	userID := uuid.New()

	msg := &domain.Message{ID: uuid.New(), UserID: userID, Text: "Go has goroutines"}
	require.NoError(t, s.CreateMessage(ctx, msg))

	card, err := domain.NewCard(userID, domain.CardSource{MessageID: &msg.ID}, domain.CardContent{Front: "f", Back: "b"})
	require.NoError(t, err)
	require.NoError(t, s.CreateCards(ctx, []*domain.Card{card}))

	n, err := s.CountCardsBySource(ctx, domain.CardSource{MessageID: &msg.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	orphanNode := uuid.New()
	orphan, err := domain.NewCard(userID, domain.CardSource{NodeID: &orphanNode}, domain.CardContent{Front: "f", Back: "b"})
	require.NoError(t, err)
	err = s.CreateCards(ctx, []*domain.Card{orphan})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	assert.ErrorIs(t, s.IncrementCardCount(ctx, uuid.New(), 1), store.ErrNodeNotFound)
}
