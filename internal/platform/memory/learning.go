package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/store"
)

func (t *txStore) CreateGoal(_ context.Context, goal *domain.Goal) error {
	if goal.ID == uuid.Nil || goal.UserID == uuid.Nil {
		return fmt.Errorf("%w: goal requires id and user id", store.ErrInvalidEntity)
	}
	if _, exists := t.s.data.goals[goal.ID]; exists {
		return fmt.Errorf("%w: goal %s", store.ErrDuplicate, goal.ID)
	}
	t.s.data.goals[goal.ID] = *goal
	return nil
}

func (t *txStore) GetGoal(_ context.Context, id uuid.UUID) (*domain.Goal, error) {
	goal, ok := t.s.data.goals[id]
	if !ok {
		return nil, store.ErrGoalNotFound
	}
	return &goal, nil
}

func (t *txStore) CreateMessage(_ context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil || msg.UserID == uuid.Nil {
		return fmt.Errorf("%w: message requires id and user id", store.ErrInvalidEntity)
	}
	if _, exists := t.s.data.messages[msg.ID]; exists {
		return fmt.Errorf("%w: message %s", store.ErrDuplicate, msg.ID)
	}
	t.s.data.messages[msg.ID] = *msg
	return nil
}

func (t *txStore) GetMessage(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, ok := t.s.data.messages[id]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	return &msg, nil
}

func (t *txStore) CreateHierarchy(_ context.Context, h *domain.Hierarchy) error {
	if _, ok := t.s.data.goals[h.GoalID]; !ok {
		return fmt.Errorf("%w: hierarchy references unknown goal %s", store.ErrInvalidEntity, h.GoalID)
	}
	if _, exists := t.s.data.hierarchies[h.ID]; exists {
		return fmt.Errorf("%w: hierarchy %s", store.ErrDuplicate, h.ID)
	}
	t.s.data.hierarchies[h.ID] = *h
	return nil
}

func (t *txStore) GetHierarchy(_ context.Context, id uuid.UUID) (*domain.Hierarchy, error) {
	h, ok := t.s.data.hierarchies[id]
	if !ok {
		return nil, store.ErrHierarchyNotFound
	}
	return &h, nil
}

func (t *txStore) CreateNodes(_ context.Context, nodes []*domain.Node) error {
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		if _, ok := t.s.data.hierarchies[n.HierarchyID]; !ok {
			return fmt.Errorf("%w: node references unknown hierarchy %s", store.ErrInvalidEntity, n.HierarchyID)
		}
		if n.ParentID != nil {
			if _, ok := t.s.data.nodes[*n.ParentID]; !ok {
				return fmt.Errorf("%w: node references unknown parent %s", store.ErrInvalidEntity, *n.ParentID)
			}
		}
		if _, exists := t.s.data.nodes[n.ID]; exists {
			return fmt.Errorf("%w: node %s", store.ErrDuplicate, n.ID)
		}
		t.s.data.nodes[n.ID] = *n
	}
	return nil
}

func (t *txStore) GetNode(_ context.Context, id uuid.UUID) (*domain.Node, error) {
	n, ok := t.s.data.nodes[id]
	if !ok {
		return nil, store.ErrNodeNotFound
	}
	return &n, nil
}

func (t *txStore) ListNodes(_ context.Context, hierarchyID uuid.UUID) ([]*domain.Node, error) {
	var out []*domain.Node
	for id := range t.s.data.nodes {
		n := t.s.data.nodes[id]
		if n.HierarchyID == hierarchyID {
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Depth != out[k].Depth {
			return out[i].Depth < out[k].Depth
		}
		return out[i].Position < out[k].Position
	})
	return out, nil
}

func (t *txStore) IncrementCardCount(_ context.Context, id uuid.UUID, delta int) error {
	n, ok := t.s.data.nodes[id]
	if !ok {
		return store.ErrNodeNotFound
	}
	n.CardCount += delta
	t.s.data.nodes[id] = n
	return nil
}

func (t *txStore) CreateCards(_ context.Context, cards []*domain.Card) error {
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		if c.NodeID != nil {
			if _, ok := t.s.data.nodes[*c.NodeID]; !ok {
				return fmt.Errorf("%w: card references unknown node %s", store.ErrInvalidEntity, *c.NodeID)
			}
		}
		if c.MessageID != nil {
			if _, ok := t.s.data.messages[*c.MessageID]; !ok {
				return fmt.Errorf("%w: card references unknown message %s", store.ErrInvalidEntity, *c.MessageID)
			}
		}
		if _, exists := t.s.data.cards[c.ID]; exists {
			return fmt.Errorf("%w: card %s", store.ErrDuplicate, c.ID)
		}
		t.s.data.cards[c.ID] = *c
	}
	return nil
}

func (t *txStore) GetCard(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	c, ok := t.s.data.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return &c, nil
}

func (t *txStore) UpdateCardContent(_ context.Context, card *domain.Card) error {
	existing, ok := t.s.data.cards[card.ID]
	if !ok {
		return store.ErrCardNotFound
	}
	existing.Content = card.Content
	existing.UpdatedAt = t.s.now()
	t.s.data.cards[card.ID] = existing
	return nil
}

func (t *txStore) CountCardsBySource(_ context.Context, source domain.CardSource) (int, error) {
	count := 0
	for _, c := range t.s.data.cards {
		switch {
		case source.NodeID != nil && c.NodeID != nil && *c.NodeID == *source.NodeID:
			count++
		case source.MessageID != nil && c.MessageID != nil && *c.MessageID == *source.MessageID:
			count++
		}
	}
	return count, nil
}
