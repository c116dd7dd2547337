package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Learning entity validation errors
var (
	ErrNodeTitleEmpty    = errors.New("node title cannot be empty")
	ErrHierarchyTopic    = errors.New("hierarchy topic cannot be empty")
	ErrHierarchyGoalNil  = errors.New("hierarchy goal ID cannot be empty")
	ErrMessageTextEmpty  = errors.New("message text cannot be empty")
	ErrNodeHierarchyNil  = errors.New("node hierarchy ID cannot be empty")
	ErrLearningUserIDNil = errors.New("user ID cannot be empty")
)

// Goal is a learning goal owned by a user. Hierarchies are generated for goals.
type Goal struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a piece of source text (for example a chat message) that cards
// can be generated from.
type Message struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Hierarchy is a generated tree of topic nodes for a goal.
type Hierarchy struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	GoalID    uuid.UUID `json:"goal_id"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHierarchy creates a hierarchy for a user's goal.
func NewHierarchy(userID, goalID uuid.UUID, topic, title string) (*Hierarchy, error) {
	if userID == uuid.Nil {
		return nil, ErrLearningUserIDNil
	}
	if goalID == uuid.Nil {
		return nil, ErrHierarchyGoalNil
	}
	if strings.TrimSpace(topic) == "" {
		return nil, ErrHierarchyTopic
	}
	if strings.TrimSpace(title) == "" {
		title = topic
	}
	return &Hierarchy{
		ID:        uuid.New(),
		UserID:    userID,
		GoalID:    goalID,
		Topic:     topic,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Node is one topic in a hierarchy. CardCount tracks how many cards have
// been generated for it.
type Node struct {
	ID          uuid.UUID  `json:"id"`
	HierarchyID uuid.UUID  `json:"hierarchy_id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Depth       int        `json:"depth"`
	Position    int        `json:"position"`
	CardCount   int        `json:"card_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate checks if the Node has valid data.
func (n *Node) Validate() error {
	if n.ID == uuid.Nil {
		return ErrInvalidID
	}
	if n.HierarchyID == uuid.Nil {
		return ErrNodeHierarchyNil
	}
	if n.UserID == uuid.Nil {
		return ErrLearningUserIDNil
	}
	if strings.TrimSpace(n.Title) == "" {
		return ErrNodeTitleEmpty
	}
	return nil
}

// Content builds the text cards are generated from: the title, followed by
// the description when there is one.
func (n *Node) Content() string {
	return NodeContent(n.Title, n.Description)
}

// NodeContent joins a node title and optional description.
func NodeContent(title, description string) string {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if description == "" {
		return title
	}
	return title + "\n\n" + description
}
