package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	nodeID := uuid.New()
	content := CardContent{Front: "What is Go?", Back: "A programming language"}

	card, err := NewCard(userID, CardSource{NodeID: &nodeID}, content)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, userID, card.UserID)
	require.NotNil(t, card.NodeID)
	assert.Equal(t, nodeID, *card.NodeID)
	assert.Nil(t, card.MessageID)
	assert.JSONEq(t, `{"front":"What is Go?","back":"A programming language"}`, string(card.Content))

	decoded, err := card.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestNewCardSource(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	id := uuid.New()
	content := CardContent{Front: "f", Back: "b"}

	_, err := NewCard(userID, CardSource{}, content)
	assert.ErrorIs(t, err, ErrCardSourceInvalid)

	_, err = NewCard(userID, CardSource{MessageID: &id, NodeID: &id}, content)
	assert.ErrorIs(t, err, ErrCardSourceInvalid)

	_, err = NewCard(uuid.Nil, CardSource{MessageID: &id}, content)
	assert.ErrorIs(t, err, ErrCardUserIDEmpty)
}

func TestCardSetDistractors(t *testing.T) {
	t.Parallel()

	msgID := uuid.New()
	card, err := NewCard(uuid.New(), CardSource{MessageID: &msgID}, CardContent{Front: "2+2?", Back: "4"})
	require.NoError(t, err)

	require.NoError(t, card.SetDistractors([]string{"3", "5", "22"}))

	content, err := card.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, "4", content.Back)
	assert.Equal(t, []string{"3", "5", "22"}, content.Distractors)
}

func TestNodeContent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Goroutines", NodeContent("Goroutines", ""))
	assert.Equal(t, "Goroutines", NodeContent(" Goroutines ", "   "))
	assert.Equal(t, "Goroutines\n\nLightweight threads", NodeContent("Goroutines", "Lightweight threads"))

	n := &Node{Title: "Channels", Description: "Typed conduits"}
	assert.Equal(t, "Channels\n\nTyped conduits", n.Content())
}

func TestNewHierarchy(t *testing.T) {
	t.Parallel()

	h, err := NewHierarchy(uuid.New(), uuid.New(), "Go concurrency", "")
	require.NoError(t, err)
	assert.Equal(t, "Go concurrency", h.Title)

	_, err = NewHierarchy(uuid.New(), uuid.Nil, "Go", "")
	assert.ErrorIs(t, err, ErrHierarchyGoalNil)

	_, err = NewHierarchy(uuid.New(), uuid.New(), "  ", "")
	assert.ErrorIs(t, err, ErrHierarchyTopic)
}
