package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/jobs/handlers"
	"github.com/phrazzld/scry-jobs/internal/platform/memory"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/phrazzld/scry-jobs/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraft() *generation.HierarchyDraft {
	return &generation.HierarchyDraft{
		Title: "Go concurrency",
		Nodes: []generation.DraftNode{
			{
				Title:       "Goroutines",
				Description: "Lightweight threads",
				Children: []generation.DraftNode{
					{Title: "Scheduling"},
					{Title: "Stacks"},
				},
			},
			{Title: "Channels"},
		},
	}
}

// failingJobs wraps a job store and fails fan-out inserts.
type failingJobs struct {
	store.JobStore
	seen []*domain.Job
}

func (f *failingJobs) CreateJobs(_ context.Context, batch []*domain.Job) error {
	f.seen = append(f.seen, batch...)
	return errors.New("insert failed")
}

// failingTransactor runs transactions on mem with a job store that fails.
type failingTransactor struct {
	mem  *memory.Store
	jobs *failingJobs
}

func (t *failingTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	return t.mem.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		t.jobs.JobStore = tx.Jobs
		tx.Jobs = t.jobs
		return fn(ctx, tx)
	})
}

func hierarchyPayload(goalID uuid.UUID) json.RawMessage {
	return jobs.MustMarshal(jobs.HierarchyGenerationPayload{GoalID: goalID, Topic: "Go concurrency"})
}

func TestHierarchyGenerationFansOut(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.hierarchy.Draft = sampleDraft()
	ctx := context.Background()
	userID := uuid.New()
	goal := testutils.MustInsertGoal(ctx, t, f.mem.Stores(), userID)

	h := handlers.NewHierarchyGenerationHandler(f.deps())
	raw, err := h.Handle(ctx, hierarchyPayload(goal.ID), userID)
	require.NoError(t, err)

	var result handlers.HierarchyGenerationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 4, result.NodeCount)
	assert.Len(t, result.ChildJobIDs, 4)
	assert.Equal(t, []string{"Go concurrency"}, f.hierarchy.Topics())

	hierarchy, err := f.mem.GetHierarchy(ctx, result.HierarchyID)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, hierarchy.GoalID)
	assert.Equal(t, "Go concurrency", hierarchy.Title)

	nodes, err := f.mem.ListNodes(ctx, result.HierarchyID)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	byTitle := map[string]*domain.Node{}
	for _, n := range nodes {
		byTitle[n.Title] = n
	}
	assert.Equal(t, 0, byTitle["Goroutines"].Depth)
	assert.Equal(t, 0, byTitle["Goroutines"].Position)
	assert.Equal(t, 1, byTitle["Channels"].Position)
	assert.Nil(t, byTitle["Channels"].ParentID)
	require.NotNil(t, byTitle["Stacks"].ParentID)
	assert.Equal(t, byTitle["Goroutines"].ID, *byTitle["Stacks"].ParentID)
	assert.Equal(t, 1, byTitle["Stacks"].Depth)
	assert.Equal(t, 1, byTitle["Stacks"].Position)

	children := f.mem.ListJobs()
	require.Len(t, children, 4)
	nodeIDs := map[uuid.UUID]bool{}
	for _, child := range children {
		assert.Equal(t, domain.JobTypeContentGeneration, child.Type)
		assert.Equal(t, domain.JobStatusPending, child.Status)
		assert.Equal(t, userID, child.UserID)
		assert.Equal(t, 0, child.Priority)

		var p jobs.ContentGenerationPayload
		require.NoError(t, json.Unmarshal(child.Payload, &p))
		require.NotNil(t, p.NodeID)
		assert.Equal(t, jobs.DefaultMaxCards, p.MaxCards)
		assert.Equal(t, byTitle[p.Title].ID, *p.NodeID)
		nodeIDs[*p.NodeID] = true
	}
	assert.Len(t, nodeIDs, 4, "one child per distinct node")
}

func TestHierarchyGenerationAllOrNothing(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.hierarchy.Draft = sampleDraft()
	ctx := context.Background()
	userID := uuid.New()
	goal := testutils.MustInsertGoal(ctx, t, f.mem.Stores(), userID)

	failing := &failingTransactor{mem: f.mem, jobs: &failingJobs{}}
	deps := f.deps()
	deps.Transactor = failing

	h := handlers.NewHierarchyGenerationHandler(deps)
	_, err := h.Handle(ctx, hierarchyPayload(goal.ID), userID)
	require.ErrorContains(t, err, "insert failed")
	assert.False(t, jobs.IsPermanent(err))

	require.Len(t, failing.jobs.seen, 4)
	for _, child := range failing.jobs.seen {
		var p jobs.ContentGenerationPayload
		require.NoError(t, json.Unmarshal(child.Payload, &p))
		_, err := f.mem.GetNode(ctx, *p.NodeID)
		assert.ErrorIs(t, err, store.ErrNodeNotFound, "node rolled back")
	}
	assert.Empty(t, f.mem.ListJobs())
}

func TestHierarchyGenerationErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("goal of another user", func(t *testing.T) {
		f := newFixture()
		f.hierarchy.Draft = sampleDraft()
		goal := testutils.MustInsertGoal(ctx, t, f.mem.Stores(), uuid.New())
		h := handlers.NewHierarchyGenerationHandler(f.deps())
		_, err := h.Handle(ctx, hierarchyPayload(goal.ID), uuid.New())
		assert.ErrorIs(t, err, store.ErrGoalNotFound)
		assert.Empty(t, f.hierarchy.Topics())
	})

	t.Run("generation failure creates nothing", func(t *testing.T) {
		f := newFixture()
		f.hierarchy.Err = generation.ErrTransientFailure
		userID := uuid.New()
		goal := testutils.MustInsertGoal(ctx, t, f.mem.Stores(), userID)
		h := handlers.NewHierarchyGenerationHandler(f.deps())
		_, err := h.Handle(ctx, hierarchyPayload(goal.ID), userID)
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.Empty(t, f.mem.ListJobs())
	})

	t.Run("empty draft", func(t *testing.T) {
		f := newFixture()
		f.hierarchy.Draft = &generation.HierarchyDraft{Title: "nothing"}
		userID := uuid.New()
		goal := testutils.MustInsertGoal(ctx, t, f.mem.Stores(), userID)
		h := handlers.NewHierarchyGenerationHandler(f.deps())
		_, err := h.Handle(ctx, hierarchyPayload(goal.ID), userID)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Empty(t, f.mem.ListJobs())
	})
}

func TestFlattenDraft(t *testing.T) {
	t.Parallel()

	h, err := domain.NewHierarchy(uuid.New(), uuid.New(), "Go", "")
	require.NoError(t, err)

	drafts := []generation.DraftNode{
		{Title: "A", Children: []generation.DraftNode{{Title: "A1"}, {Title: " "}, {Title: "A2"}}},
		{Title: "", Children: []generation.DraftNode{{Title: "orphan"}}},
		{Title: "B"},
	}
	nodes := handlers.FlattenDraft(h, drafts)

	titles := make([]string, 0, len(nodes))
	for _, n := range nodes {
		titles = append(titles, n.Title)
		assert.Equal(t, h.ID, n.HierarchyID)
		assert.Equal(t, h.UserID, n.UserID)
	}
	assert.Equal(t, []string{"A", "A1", "A2", "B"}, titles)
	assert.Equal(t, 1, nodes[2].Position, "blank siblings do not take a position")
	assert.Equal(t, 1, nodes[3].Position)
}

func TestFanOutContentJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, k := range []int{0, 1, 5, 30} {
		f := newFixture()
		userID := uuid.New()
		var nodes []*domain.Node
		for i := 0; i < k; i++ {
			nodes = append(nodes, testutils.MustInsertNode(ctx, t, f.mem.Stores(), userID, "Topic"))
		}

		children, err := handlers.FanOutContentJobs(ctx, f.mem, userID, nodes)
		require.NoError(t, err)
		assert.Len(t, children, k)
		assert.Len(t, f.mem.ListJobs(), k)
	}

	f := newFixture()
	node := testutils.MustInsertNode(ctx, t, f.mem.Stores(), uuid.New(), "Dup")
	_, err := handlers.FanOutContentJobs(ctx, f.mem, node.UserID, []*domain.Node{node, node})
	assert.ErrorIs(t, err, jobs.ErrInvalidPayload)
	assert.Empty(t, f.mem.ListJobs())
}
