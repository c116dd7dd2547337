package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/jobs/handlers"
	"github.com/phrazzld/scry-jobs/internal/mocks"
	"github.com/phrazzld/scry-jobs/internal/platform/memory"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/phrazzld/scry-jobs/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mem         *memory.Store
	clock       *testutils.Clock
	content     *mocks.MockContentGenerator
	hierarchy   *mocks.MockHierarchyGenerator
	distractors *mocks.MockDistractorGenerator
}

func newFixture() *fixture {
	clock := testutils.NewClock()
	return &fixture{
		mem:         memory.New(memory.WithClock(clock.Now)),
		clock:       clock,
		content:     &mocks.MockContentGenerator{},
		hierarchy:   &mocks.MockHierarchyGenerator{},
		distractors: &mocks.MockDistractorGenerator{},
	}
}

func (f *fixture) deps() handlers.Deps {
	return handlers.Deps{
		Transactor:  f.mem,
		Stores:      f.mem.Stores(),
		Content:     f.content,
		Hierarchy:   f.hierarchy,
		Distractors: f.distractors,
	}
}

func pairs(n int) []generation.QA {
	out := make([]generation.QA, n)
	for i := range out {
		out[i] = generation.QA{Question: fmt.Sprintf("Q%d?", i), Answer: fmt.Sprintf("A%d", i)}
	}
	return out
}

func contentPayload(nodeID uuid.UUID, maxCards int) json.RawMessage {
	return jobs.MustMarshal(jobs.ContentGenerationPayload{NodeID: &nodeID, MaxCards: maxCards})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	f := newFixture()
	r := jobs.NewRegistry()
	require.NoError(t, handlers.Register(r, f.deps()))
	assert.Len(t, r.Types(), len(domain.JobTypes))

	deps := f.deps()
	deps.Hierarchy = nil
	err := handlers.Register(jobs.NewRegistry(), deps)
	assert.ErrorContains(t, err, "hierarchy generator cannot be nil")
}

func TestContentGenerationCapsCards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		generated int
		maxCards  int
		want      int
	}{
		{"more generated than max", 7, 5, 5},
		{"fewer generated than max", 2, 5, 2},
		{"default max", 9, 0, jobs.DefaultMaxCards},
		{"none generated", 0, 3, 0},
		{"large max truncates", 30, 25, 25},
		{"large max above generated", 12, 40, 12},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			f.content.Pairs = pairs(tc.generated)
			ctx := context.Background()
			userID := uuid.New()
			node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, "Goroutines")

			h := handlers.NewContentGenerationHandler(f.deps())
			raw, err := h.Handle(ctx, contentPayload(node.ID, tc.maxCards), userID)
			require.NoError(t, err)

			var result handlers.ContentGenerationResult
			require.NoError(t, json.Unmarshal(raw, &result))
			assert.Equal(t, tc.want, result.Count)
			assert.Len(t, result.CreatedIDs, tc.want)

			count, err := f.mem.CountCardsBySource(ctx, domain.CardSource{NodeID: &node.ID})
			require.NoError(t, err)
			assert.Equal(t, tc.want, count)

			stored, err := f.mem.GetNode(ctx, node.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.CardCount)
		})
	}
}

func TestContentGenerationNodeContent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.content.Pairs = pairs(1)
	ctx := context.Background()
	userID := uuid.New()
	node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, "Channels")

	h := handlers.NewContentGenerationHandler(f.deps())
	_, err := h.Handle(ctx, contentPayload(node.ID, 3), userID)
	require.NoError(t, err)

	payload := jobs.MustMarshal(jobs.ContentGenerationPayload{
		NodeID:      &node.ID,
		Title:       "Buffered channels",
		Description: "Capacity and blocking",
	})
	_, err = h.Handle(ctx, payload, userID)
	require.NoError(t, err)

	assert.Equal(t, []string{"Channels", "Buffered channels\n\nCapacity and blocking"}, f.content.Calls())
	assert.Equal(t, []int{3, jobs.DefaultMaxCards}, f.content.Maxes())
}

func TestContentGenerationFromMessage(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.content.Pairs = []generation.QA{
		{Question: "What is a goroutine?", Answer: "A lightweight thread"},
		{Question: "  ", Answer: "dropped"},
		{Question: "What is a channel?", Answer: "A typed conduit"},
	}
	ctx := context.Background()
	userID := uuid.New()
	msg := testutils.MustInsertMessage(ctx, t, f.mem.Stores(), userID, "Go concurrency basics")

	h := handlers.NewContentGenerationHandler(f.deps())
	raw, err := h.Handle(ctx, jobs.MustMarshal(jobs.ContentGenerationPayload{MessageID: &msg.ID}), userID)
	require.NoError(t, err)

	var result handlers.ContentGenerationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 2, result.Count)

	card, err := f.mem.GetCard(ctx, result.CreatedIDs[1])
	require.NoError(t, err)
	require.NotNil(t, card.MessageID)
	assert.Equal(t, msg.ID, *card.MessageID)
	content, err := card.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, "What is a channel?", content.Front)
	assert.Equal(t, []string{"Go concurrency basics"}, f.content.Calls())
}

func TestContentGenerationErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing node is retryable", func(t *testing.T) {
		f := newFixture()
		h := handlers.NewContentGenerationHandler(f.deps())
		_, err := h.Handle(ctx, contentPayload(uuid.New(), 5), uuid.New())
		assert.ErrorIs(t, err, store.ErrNodeNotFound)
		assert.False(t, jobs.IsPermanent(err))
		assert.Empty(t, f.content.Calls())
	})

	t.Run("node of another user", func(t *testing.T) {
		f := newFixture()
		node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), uuid.New(), "Select")
		h := handlers.NewContentGenerationHandler(f.deps())
		_, err := h.Handle(ctx, contentPayload(node.ID, 5), uuid.New())
		assert.ErrorIs(t, err, store.ErrNodeNotFound)
	})

	t.Run("blocked content is permanent", func(t *testing.T) {
		f := newFixture()
		f.content.Err = generation.ErrContentBlocked
		userID := uuid.New()
		node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, "Select")
		h := handlers.NewContentGenerationHandler(f.deps())
		_, err := h.Handle(ctx, contentPayload(node.ID, 5), userID)
		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.True(t, jobs.IsPermanent(err))
	})

	t.Run("transient generation failure", func(t *testing.T) {
		f := newFixture()
		f.content.Err = generation.ErrTransientFailure
		userID := uuid.New()
		node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, "Select")
		h := handlers.NewContentGenerationHandler(f.deps())
		_, err := h.Handle(ctx, contentPayload(node.ID, 5), userID)
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.False(t, jobs.IsPermanent(err))
	})

	t.Run("undecodable payload is permanent", func(t *testing.T) {
		f := newFixture()
		h := handlers.NewContentGenerationHandler(f.deps())
		_, err := h.Handle(ctx, json.RawMessage(`{"max_cards":2}`), uuid.New())
		assert.ErrorIs(t, err, jobs.ErrInvalidPayload)
		assert.True(t, jobs.IsPermanent(err))
	})
}

func TestMissingNodeFailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.content.Pairs = pairs(3)
	ctx := context.Background()

	registry := jobs.NewRegistry()
	require.NoError(t, handlers.Register(registry, f.deps()))
	proc := jobs.NewProcessor(f.mem, registry, jobs.DefaultProcessorConfig(), nil,
		jobs.WithProcessorClock(f.clock.Now))

	missing := uuid.New()
	job, err := domain.NewJob(uuid.New(), domain.JobTypeContentGeneration, contentPayload(missing, 5), 0)
	require.NoError(t, err)
	job, err = f.mem.CreateJob(ctx, job, nil)
	require.NoError(t, err)

	statuses := []domain.JobStatus{}
	for i := 0; i < job.MaxAttempts; i++ {
		processed, err := proc.ProcessNext(ctx, 1)
		require.NoError(t, err)
		require.True(t, processed, "attempt %d", i+1)

		got, err := f.mem.GetJobByID(ctx, job.ID)
		require.NoError(t, err)
		statuses = append(statuses, got.Status)
		f.clock.Advance(time.Hour)
	}

	assert.Equal(t, []domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusPending,
		domain.JobStatusFailed,
	}, statuses)

	got, err := f.mem.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.MaxAttempts, got.Attempts)
	assert.Contains(t, got.Error, "node")

	count, err := f.mem.CountCardsBySource(ctx, domain.CardSource{NodeID: &missing})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.content.Calls())
}

func TestDistractorGeneration(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.distractors.Distractors = []string{"3", "5", "22", "8"}
	ctx := context.Background()
	userID := uuid.New()
	msg := testutils.MustInsertMessage(ctx, t, f.mem.Stores(), userID, "arithmetic")
	card := testutils.MustInsertCard(ctx, t, f.mem.Stores(), userID, msg.ID, "2+2?", "4")

	h := handlers.NewDistractorGenerationHandler(f.deps())
	raw, err := h.Handle(ctx, jobs.MustMarshal(jobs.DistractorGenerationPayload{CardID: card.ID}), userID)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"card_id":%q,"count":3}`, card.ID), string(raw))

	stored, err := f.mem.GetCard(ctx, card.ID)
	require.NoError(t, err)
	content, err := stored.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, "4", content.Back)
	assert.Equal(t, []string{"3", "5", "22"}, content.Distractors)
	assert.Equal(t, []int{jobs.DefaultDistractorCount}, f.distractors.Counts())

	_, err = h.Handle(ctx, jobs.MustMarshal(jobs.DistractorGenerationPayload{CardID: card.ID}), uuid.New())
	assert.ErrorIs(t, err, store.ErrCardNotFound)

	f.distractors.Err = errors.New("quota")
	_, err = h.Handle(ctx, jobs.MustMarshal(jobs.DistractorGenerationPayload{CardID: card.ID, Count: 2}), userID)
	assert.ErrorContains(t, err, "quota")
	assert.False(t, jobs.IsPermanent(err))
}

func TestFanOutCountsTowardWindow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	limiter := ratelimit.NewLimiter(ratelimit.Policy{Limit: 2, Window: time.Hour}).WithClock(f.clock.Now)

	var nodes []*domain.Node
	for i := 0; i < 3; i++ {
		nodes = append(nodes, testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, fmt.Sprintf("Topic %d", i)))
	}

	children, err := handlers.FanOutContentJobs(ctx, f.mem, userID, nodes)
	require.NoError(t, err)
	assert.Len(t, children, 3, "fan-out is not limited")

	d, err := limiter.CheckRateLimit(ctx, f.mem, userID, domain.JobTypeContentGeneration)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}
