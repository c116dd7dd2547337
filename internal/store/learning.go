package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
)

// GoalStore persists learning goals.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *domain.Goal) error
	GetGoal(ctx context.Context, id uuid.UUID) (*domain.Goal, error)
}

// MessageStore persists source messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error)
}

// HierarchyStore persists generated hierarchies.
type HierarchyStore interface {
	CreateHierarchy(ctx context.Context, h *domain.Hierarchy) error
	GetHierarchy(ctx context.Context, id uuid.UUID) (*domain.Hierarchy, error)
}

// NodeStore persists hierarchy nodes.
type NodeStore interface {
	// CreateNodes inserts nodes in order. Parents must precede children.
	CreateNodes(ctx context.Context, nodes []*domain.Node) error
	GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error)
	ListNodes(ctx context.Context, hierarchyID uuid.UUID) ([]*domain.Node, error)
	// IncrementCardCount adds delta to the node's card_count.
	IncrementCardCount(ctx context.Context, id uuid.UUID, delta int) error
}

// CardStore persists generated cards.
type CardStore interface {
	CreateCards(ctx context.Context, cards []*domain.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	UpdateCardContent(ctx context.Context, card *domain.Card) error
	CountCardsBySource(ctx context.Context, source domain.CardSource) (int, error)
}

// Stores groups every store bound to the same connection or transaction.
type Stores struct {
	Jobs        JobStore
	Goals       GoalStore
	Messages    MessageStore
	Hierarchies HierarchyStore
	Nodes       NodeStore
	Cards       CardStore
}

// Transactor runs fn with stores bound to a single transaction. The
// transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
