package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCardStore{db: db, logger: logger.With(slog.String("component", "card_store"))}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// CreateCards implements store.CardStore.CreateCards.
// Cards are validated up front so a bad card inserts nothing. Callers
// wanting all-or-nothing across the batch run this inside a transaction.
func (s *PostgresCardStore) CreateCards(ctx context.Context, cards []*domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, card := range cards {
		if err := card.Validate(); err != nil {
			log.Warn("card validation failed during creation",
				slog.String("error", err.Error()),
				slog.String("card_id", card.ID.String()))
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}

	for _, card := range cards {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cards (id, user_id, message_id, node_id, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			card.ID, card.UserID, nullUUID(card.MessageID), nullUUID(card.NodeID),
			[]byte(card.Content), card.CreatedAt, card.UpdatedAt)
		if err != nil {
			log.Error("failed to insert card",
				slog.String("error", err.Error()),
				slog.String("card_id", card.ID.String()))
			return MapError(err)
		}
	}

	log.Debug("cards created", slog.Int("count", len(cards)))
	return nil
}

// GetCard implements store.CardStore.GetCard.
func (s *PostgresCardStore) GetCard(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	var (
		card      domain.Card
		messageID uuid.NullUUID
		nodeID    uuid.NullUUID
		content   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, message_id, node_id, content, created_at, updated_at
		FROM cards WHERE id = $1`, id).
		Scan(&card.ID, &card.UserID, &messageID, &nodeID, &content, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err, store.ErrCardNotFound)
	}
	if messageID.Valid {
		v := messageID.UUID
		card.MessageID = &v
	}
	if nodeID.Valid {
		v := nodeID.UUID
		card.NodeID = &v
	}
	card.Content = content
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	return &card, nil
}

// UpdateCardContent implements store.CardStore.UpdateCardContent.
func (s *PostgresCardStore) UpdateCardContent(ctx context.Context, card *domain.Card) error {
	if len(card.Content) == 0 {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrCardContentEmpty)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE cards SET content = $1, updated_at = $2 WHERE id = $3`,
		[]byte(card.Content), time.Now().UTC(), card.ID)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrCardNotFound)
}

// CountCardsBySource implements store.CardStore.CountCardsBySource.
func (s *PostgresCardStore) CountCardsBySource(ctx context.Context, source domain.CardSource) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards
		WHERE ($1::uuid IS NOT NULL AND message_id = $1)
			OR ($2::uuid IS NOT NULL AND node_id = $2)`,
		nullUUID(source.MessageID), nullUUID(source.NodeID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", MapError(err))
	}
	return count, nil
}
