package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// ContentGenerationResult is stored on a completed content_generation job.
type ContentGenerationResult struct {
	CreatedIDs []uuid.UUID `json:"created_ids"`
	Count      int         `json:"count"`
}

// ContentGenerationHandler turns a message or hierarchy node into cards.
type ContentGenerationHandler struct {
	tx        store.Transactor
	stores    store.Stores
	generator generation.ContentGenerator
	logger    *slog.Logger
}

// NewContentGenerationHandler creates a ContentGenerationHandler.
func NewContentGenerationHandler(deps Deps) *ContentGenerationHandler {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	return &ContentGenerationHandler{
		tx:        deps.Transactor,
		stores:    deps.Stores,
		generator: deps.Content,
		logger:    l.With(slog.String("handler", string(domain.JobTypeContentGeneration))),
	}
}

// Handle implements jobs.HandlerFunc.
//
// The node's card_count is incremented by exactly the number of cards
// created, in the same transaction as the cards.
func (h *ContentGenerationHandler) Handle(
	ctx context.Context,
	raw json.RawMessage,
	userID uuid.UUID,
) (json.RawMessage, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	var p jobs.ContentGenerationPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	content, err := h.sourceContent(ctx, &p, userID)
	if err != nil {
		return nil, err
	}

	limit := p.Limit()
	pairs, err := h.generator.GenerateQuestions(ctx, content, limit)
	if err != nil {
		return nil, classifyGenerationError(fmt.Errorf("failed to generate questions: %w", err))
	}

	source := p.Source()
	cards := make([]*domain.Card, 0, min(len(pairs), limit))
	for _, qa := range pairs {
		if len(cards) == limit {
			break
		}
		if !qa.Valid() {
			continue
		}
		card, err := domain.NewCard(userID, source, domain.CardContent{Front: qa.Question, Back: qa.Answer})
		if err != nil {
			return nil, jobs.Permanent(fmt.Errorf("failed to build card: %w", err))
		}
		cards = append(cards, card)
	}

	if len(cards) > 0 {
		err = h.tx.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
			if err := tx.Cards.CreateCards(ctx, cards); err != nil {
				return fmt.Errorf("failed to save cards: %w", err)
			}
			if p.NodeID != nil {
				if err := tx.Nodes.IncrementCardCount(ctx, *p.NodeID, len(cards)); err != nil {
					return fmt.Errorf("failed to update node card count: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	result := ContentGenerationResult{CreatedIDs: make([]uuid.UUID, 0, len(cards)), Count: len(cards)}
	for _, c := range cards {
		result.CreatedIDs = append(result.CreatedIDs, c.ID)
	}

	log.Info("generated cards",
		slog.Int("requested", limit),
		slog.Int("generated", len(pairs)),
		slog.Int("created", len(cards)))
	return jobs.MustMarshal(result), nil
}

// sourceContent resolves the payload's node or message and returns the text
// to generate from. Entities owned by another user are reported as missing.
func (h *ContentGenerationHandler) sourceContent(
	ctx context.Context,
	p *jobs.ContentGenerationPayload,
	userID uuid.UUID,
) (string, error) {
	if p.NodeID != nil {
		node, err := h.stores.Nodes.GetNode(ctx, *p.NodeID)
		if err != nil {
			return "", fmt.Errorf("failed to resolve node %s: %w", *p.NodeID, err)
		}
		if node.UserID != userID {
			return "", fmt.Errorf("failed to resolve node %s: %w", *p.NodeID, store.ErrNodeNotFound)
		}
		if p.Title != "" {
			return domain.NodeContent(p.Title, p.Description), nil
		}
		return node.Content(), nil
	}

	msg, err := h.stores.Messages.GetMessage(ctx, *p.MessageID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve message %s: %w", *p.MessageID, err)
	}
	if msg.UserID != userID {
		return "", fmt.Errorf("failed to resolve message %s: %w", *p.MessageID, store.ErrMessageNotFound)
	}
	return msg.Text, nil
}
