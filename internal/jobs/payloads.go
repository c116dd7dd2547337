package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
)

// Payload defaults and limits
const (
	DefaultMaxCards        = 5
	DefaultDistractorCount = 3
	MaxDistractorCount     = 10
)

var validate = validator.New()

// Payload is a decoded job payload.
type Payload interface {
	Validate() error
}

// ContentGenerationPayload asks for cards generated from a message or a
// hierarchy node. Exactly one of MessageID and NodeID is set.
type ContentGenerationPayload struct {
	MessageID   *uuid.UUID `json:"message_id,omitempty"`
	NodeID      *uuid.UUID `json:"node_id,omitempty"`
	Title       string     `json:"title,omitempty"       validate:"max=500"`
	Description string     `json:"description,omitempty" validate:"max=10000"`
	MaxCards    int        `json:"max_cards,omitempty"   validate:"gte=0"`
}

// Validate implements Payload.
func (p *ContentGenerationPayload) Validate() error {
	hasMessage := p.MessageID != nil && *p.MessageID != uuid.Nil
	hasNode := p.NodeID != nil && *p.NodeID != uuid.Nil
	if hasMessage == hasNode {
		return fmt.Errorf("%w: exactly one of message_id or node_id is required", ErrInvalidPayload)
	}
	return validateStruct(p)
}

// Limit returns the card cap, applying the default when unset.
func (p *ContentGenerationPayload) Limit() int {
	if p.MaxCards <= 0 {
		return DefaultMaxCards
	}
	return p.MaxCards
}

// Source returns the card source the payload refers to.
func (p *ContentGenerationPayload) Source() domain.CardSource {
	if p.NodeID != nil {
		return domain.CardSource{NodeID: p.NodeID}
	}
	return domain.CardSource{MessageID: p.MessageID}
}

// HierarchyGenerationPayload asks for a topic hierarchy under a goal.
type HierarchyGenerationPayload struct {
	GoalID uuid.UUID `json:"goal_id"`
	Topic  string    `json:"topic" validate:"required,max=500"`
}

// Validate implements Payload.
func (p *HierarchyGenerationPayload) Validate() error {
	if p.GoalID == uuid.Nil {
		return fmt.Errorf("%w: goal_id is required", ErrInvalidPayload)
	}
	return validateStruct(p)
}

// DistractorGenerationPayload asks for wrong answers for an existing card.
type DistractorGenerationPayload struct {
	CardID uuid.UUID `json:"card_id"`
	Count  int       `json:"count,omitempty" validate:"gte=0,lte=10"`
}

// Validate implements Payload.
func (p *DistractorGenerationPayload) Validate() error {
	if p.CardID == uuid.Nil {
		return fmt.Errorf("%w: card_id is required", ErrInvalidPayload)
	}
	return validateStruct(p)
}

// Limit returns the distractor count, applying the default when unset.
func (p *DistractorGenerationPayload) Limit() int {
	if p.Count <= 0 {
		return DefaultDistractorCount
	}
	return p.Count
}

func validateStruct(p any) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %s", ErrInvalidPayload, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodePayload unmarshals raw into dst and validates it.
func DecodePayload(raw json.RawMessage, dst Payload) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return dst.Validate()
}

// ParsePayload decodes raw into the payload type for jobType.
func ParsePayload(jobType domain.JobType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch jobType {
	case domain.JobTypeContentGeneration:
		p = &ContentGenerationPayload{}
	case domain.JobTypeHierarchyGeneration:
		p = &HierarchyGenerationPayload{}
	case domain.JobTypeDistractorGeneration:
		p = &DistractorGenerationPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	if err := DecodePayload(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MustMarshal encodes v for use as a job payload or result. It panics if v
// cannot be encoded, which only happens for unsupported types.
func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("jobs: marshal %T: %v", v, err))
	}
	return b
}
