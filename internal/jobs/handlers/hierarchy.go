package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/platform/metrics"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// HierarchyGenerationResult is stored on a completed hierarchy_generation job.
type HierarchyGenerationResult struct {
	HierarchyID uuid.UUID   `json:"hierarchy_id"`
	NodeCount   int         `json:"node_count"`
	ChildJobIDs []uuid.UUID `json:"child_job_ids"`
}

// HierarchyGenerationHandler generates a topic hierarchy for a goal and
// fans out one card job per node.
type HierarchyGenerationHandler struct {
	tx        store.Transactor
	stores    store.Stores
	generator generation.HierarchyGenerator
	logger    *slog.Logger
}

// NewHierarchyGenerationHandler creates a HierarchyGenerationHandler.
func NewHierarchyGenerationHandler(deps Deps) *HierarchyGenerationHandler {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	return &HierarchyGenerationHandler{
		tx:        deps.Transactor,
		stores:    deps.Stores,
		generator: deps.Hierarchy,
		logger:    l.With(slog.String("handler", string(domain.JobTypeHierarchyGeneration))),
	}
}

// Handle implements jobs.HandlerFunc.
//
// The hierarchy, its nodes and the child jobs are written in one
// transaction: either all of them exist afterwards or none do.
func (h *HierarchyGenerationHandler) Handle(
	ctx context.Context,
	raw json.RawMessage,
	userID uuid.UUID,
) (json.RawMessage, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	var p jobs.HierarchyGenerationPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	goal, err := h.stores.Goals.GetGoal(ctx, p.GoalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve goal %s: %w", p.GoalID, err)
	}
	if goal.UserID != userID {
		return nil, fmt.Errorf("failed to resolve goal %s: %w", p.GoalID, store.ErrGoalNotFound)
	}

	draft, err := h.generator.GenerateHierarchy(ctx, p.Topic)
	if err != nil {
		return nil, classifyGenerationError(fmt.Errorf("failed to generate hierarchy: %w", err))
	}
	if draft == nil || draft.Count() == 0 {
		return nil, fmt.Errorf("%w: hierarchy has no nodes", generation.ErrInvalidResponse)
	}

	hierarchy, err := domain.NewHierarchy(userID, goal.ID, p.Topic, draft.Title)
	if err != nil {
		return nil, jobs.Permanent(fmt.Errorf("failed to build hierarchy: %w", err))
	}
	nodes := FlattenDraft(hierarchy, draft.Nodes)

	var children []*domain.Job
	err = h.tx.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		if err := tx.Hierarchies.CreateHierarchy(ctx, hierarchy); err != nil {
			return fmt.Errorf("failed to save hierarchy: %w", err)
		}
		if err := tx.Nodes.CreateNodes(ctx, nodes); err != nil {
			return fmt.Errorf("failed to save nodes: %w", err)
		}
		var err error
		children, err = FanOutContentJobs(ctx, tx.Jobs, userID, nodes)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AddJobsCreated(string(domain.JobTypeContentGeneration), "fanout", len(children))

	result := HierarchyGenerationResult{
		HierarchyID: hierarchy.ID,
		NodeCount:   len(nodes),
		ChildJobIDs: make([]uuid.UUID, 0, len(children)),
	}
	for _, c := range children {
		result.ChildJobIDs = append(result.ChildJobIDs, c.ID)
	}

	log.Info("generated hierarchy",
		slog.String("hierarchy_id", hierarchy.ID.String()),
		slog.Int("node_count", len(nodes)),
		slog.Int("child_jobs", len(children)))
	return jobs.MustMarshal(result), nil
}

// FlattenDraft converts a draft tree into nodes of hierarchy in depth-first
// order, so every parent precedes its children. Position is the index among
// siblings. Nodes with blank titles are skipped along with their subtrees.
func FlattenDraft(hierarchy *domain.Hierarchy, drafts []generation.DraftNode) []*domain.Node {
	now := time.Now().UTC()
	var nodes []*domain.Node

	var walk func(drafts []generation.DraftNode, parent *uuid.UUID, depth int)
	walk = func(drafts []generation.DraftNode, parent *uuid.UUID, depth int) {
		position := 0
		for _, d := range drafts {
			n := &domain.Node{
				ID:          uuid.New(),
				HierarchyID: hierarchy.ID,
				ParentID:    parent,
				UserID:      hierarchy.UserID,
				Title:       d.Title,
				Description: d.Description,
				Depth:       depth,
				Position:    position,
				CreatedAt:   now,
			}
			if n.Validate() != nil {
				continue
			}
			nodes = append(nodes, n)
			position++

			id := n.ID
			walk(d.Children, &id, depth+1)
		}
	}
	walk(drafts, nil, 0)
	return nodes
}
