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

// DistractorGenerationResult is stored on a completed distractor_generation job.
type DistractorGenerationResult struct {
	CardID uuid.UUID `json:"card_id"`
	Count  int       `json:"count"`
}

// DistractorGenerationHandler adds wrong answers to an existing card.
type DistractorGenerationHandler struct {
	stores    store.Stores
	generator generation.DistractorGenerator
	logger    *slog.Logger
}

// NewDistractorGenerationHandler creates a DistractorGenerationHandler.
func NewDistractorGenerationHandler(deps Deps) *DistractorGenerationHandler {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	return &DistractorGenerationHandler{
		stores:    deps.Stores,
		generator: deps.Distractors,
		logger:    l.With(slog.String("handler", string(domain.JobTypeDistractorGeneration))),
	}
}

// Handle implements jobs.HandlerFunc.
func (h *DistractorGenerationHandler) Handle(
	ctx context.Context,
	raw json.RawMessage,
	userID uuid.UUID,
) (json.RawMessage, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	var p jobs.DistractorGenerationPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	card, err := h.stores.Cards.GetCard(ctx, p.CardID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve card %s: %w", p.CardID, err)
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("failed to resolve card %s: %w", p.CardID, store.ErrCardNotFound)
	}

	content, err := card.DecodeContent()
	if err != nil {
		return nil, jobs.Permanent(fmt.Errorf("failed to decode card %s: %w", card.ID, err))
	}

	distractors, err := h.generator.GenerateDistractors(ctx, content.Front, content.Back, p.Limit())
	if err != nil {
		return nil, classifyGenerationError(fmt.Errorf("failed to generate distractors: %w", err))
	}
	if len(distractors) > p.Limit() {
		distractors = distractors[:p.Limit()]
	}

	if err := card.SetDistractors(distractors); err != nil {
		return nil, jobs.Permanent(err)
	}
	if err := h.stores.Cards.UpdateCardContent(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save distractors: %w", err)
	}

	log.Info("generated distractors",
		slog.String("card_id", card.ID.String()),
		slog.Int("count", len(distractors)))
	return jobs.MustMarshal(DistractorGenerationResult{CardID: card.ID, Count: len(distractors)}), nil
}
