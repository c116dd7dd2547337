package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/stretchr/testify/require"
)

// CreateTestGoal creates a new valid goal for testing.
// It does not save the goal.
func CreateTestGoal(userID uuid.UUID) *domain.Goal {
	return &domain.Goal{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     fmt.Sprintf("Test goal %s", uuid.New().String()[:8]),
		CreatedAt: time.Now().UTC(),
	}
}

// MustInsertGoal saves a new goal for userID and returns it.
func MustInsertGoal(ctx context.Context, t *testing.T, stores store.Stores, userID uuid.UUID) *domain.Goal {
	t.Helper()
	goal := CreateTestGoal(userID)
	require.NoError(t, stores.Goals.CreateGoal(ctx, goal), "Failed to insert test goal")
	return goal
}

// MustInsertMessage saves a message with text for userID and returns it.
func MustInsertMessage(
	ctx context.Context,
	t *testing.T,
	stores store.Stores,
	userID uuid.UUID,
	text string,
) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, stores.Messages.CreateMessage(ctx, msg), "Failed to insert test message")
	return msg
}

// MustInsertHierarchy saves a goal and a hierarchy under it for userID.
func MustInsertHierarchy(ctx context.Context, t *testing.T, stores store.Stores, userID uuid.UUID) *domain.Hierarchy {
	t.Helper()
	goal := MustInsertGoal(ctx, t, stores, userID)
	h, err := domain.NewHierarchy(userID, goal.ID, "Test topic", "")
	require.NoError(t, err, "Failed to create test hierarchy")
	require.NoError(t, stores.Hierarchies.CreateHierarchy(ctx, h), "Failed to insert test hierarchy")
	return h
}

// MustInsertNode saves a root node with title in a fresh hierarchy owned
// by userID and returns it.
func MustInsertNode(
	ctx context.Context,
	t *testing.T,
	stores store.Stores,
	userID uuid.UUID,
	title string,
) *domain.Node {
	t.Helper()
	h := MustInsertHierarchy(ctx, t, stores, userID)
	node := &domain.Node{
		ID:          uuid.New(),
		HierarchyID: h.ID,
		UserID:      userID,
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, stores.Nodes.CreateNodes(ctx, []*domain.Node{node}), "Failed to insert test node")
	return node
}

// MustInsertCard saves a card generated from message msgID for userID.
func MustInsertCard(
	ctx context.Context,
	t *testing.T,
	stores store.Stores,
	userID, msgID uuid.UUID,
	front, back string,
) *domain.Card {
	t.Helper()
	card, err := domain.NewCard(userID, domain.CardSource{MessageID: &msgID}, domain.CardContent{Front: front, Back: back})
	require.NoError(t, err, "Failed to create test card")
	require.NoError(t, stores.Cards.CreateCards(ctx, []*domain.Card{card}), "Failed to insert test card")
	return card
}
