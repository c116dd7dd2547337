package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardUserIDEmpty is returned when a card's user ID is empty or nil.
	ErrCardUserIDEmpty = errors.New("card user ID cannot be empty")

	// ErrCardSourceInvalid is returned when a card is not linked to exactly
	// one source (a message or a node).
	ErrCardSourceInvalid = errors.New("card must reference exactly one of message or node")

	// ErrCardContentEmpty is returned when a card's content is empty.
	ErrCardContentEmpty = errors.New("card content cannot be empty")

	// ErrCardContentInvalid is returned when a card's content is not valid JSON.
	ErrCardContentInvalid = errors.New("card content must be valid JSON")
)

// CardSource links a card to what it was generated from.
type CardSource struct {
	MessageID *uuid.UUID
	NodeID    *uuid.UUID
}

// Card is a question/answer flashcard generated from a message or a
// hierarchy node. Content is stored as JSONB.
type Card struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	MessageID *uuid.UUID      `json:"message_id,omitempty"`
	NodeID    *uuid.UUID      `json:"node_id,omitempty"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CardContent is the structure stored in Card.Content.
type CardContent struct {
	Front       string   `json:"front"`
	Back        string   `json:"back"`
	Distractors []string `json:"distractors,omitempty"`
}

// NewCard creates a card for userID from the given source and content.
func NewCard(userID uuid.UUID, source CardSource, content CardContent) (*Card, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, ErrCardContentInvalid
	}

	now := time.Now().UTC()
	card := &Card{
		ID:        uuid.New(),
		UserID:    userID,
		MessageID: source.MessageID,
		NodeID:    source.NodeID,
		Content:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}

	if (c.MessageID == nil) == (c.NodeID == nil) {
		return ErrCardSourceInvalid
	}

	if len(c.Content) == 0 {
		return ErrCardContentEmpty
	}

	var js json.RawMessage
	if err := json.Unmarshal(c.Content, &js); err != nil {
		return ErrCardContentInvalid
	}

	return nil
}

// DecodeContent unmarshals the card's content.
func (c *Card) DecodeContent() (CardContent, error) {
	var content CardContent
	if err := json.Unmarshal(c.Content, &content); err != nil {
		return CardContent{}, ErrCardContentInvalid
	}
	return content, nil
}

// SetDistractors replaces the distractor answers stored in the card content.
func (c *Card) SetDistractors(distractors []string) error {
	content, err := c.DecodeContent()
	if err != nil {
		return err
	}
	content.Distractors = distractors

	raw, err := json.Marshal(content)
	if err != nil {
		return ErrCardContentInvalid
	}

	c.Content = raw
	c.UpdatedAt = time.Now().UTC()
	return nil
}
