package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// FanOutPriority is the priority given to per-node card jobs.
const FanOutPriority = 0

// FanOutContentJobs enqueues one content_generation job per node through
// jobStore. Pass the transaction-bound job store so the children commit or
// roll back with the nodes. Children are not rate limited but do count
// toward the user's window.
func FanOutContentJobs(
	ctx context.Context,
	jobStore store.JobStore,
	userID uuid.UUID,
	nodes []*domain.Node,
) ([]*domain.Job, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(nodes))
	children := make([]*domain.Job, 0, len(nodes))
	for _, node := range nodes {
		if _, dup := seen[node.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s in fan-out", jobs.ErrInvalidPayload, node.ID)
		}
		seen[node.ID] = struct{}{}

		nodeID := node.ID
		payload := jobs.MustMarshal(jobs.ContentGenerationPayload{
			NodeID:      &nodeID,
			Title:       node.Title,
			Description: node.Description,
			MaxCards:    jobs.DefaultMaxCards,
		})
		child, err := domain.NewJob(userID, domain.JobTypeContentGeneration, payload, FanOutPriority)
		if err != nil {
			return nil, fmt.Errorf("failed to build child job for node %s: %w", node.ID, err)
		}
		children = append(children, child)
	}

	if err := jobStore.CreateJobs(ctx, children); err != nil {
		return nil, fmt.Errorf("failed to enqueue child jobs: %w", err)
	}
	return children, nil
}
