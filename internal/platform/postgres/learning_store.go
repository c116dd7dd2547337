package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// PostgresGoalStore implements store.GoalStore.
type PostgresGoalStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGoalStore creates a goal store on db.
func NewPostgresGoalStore(db store.DBTX, logger *slog.Logger) *PostgresGoalStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGoalStore{db: db, logger: logger.With(slog.String("component", "goal_store"))}
}

var _ store.GoalStore = (*PostgresGoalStore)(nil)

// CreateGoal implements store.GoalStore.CreateGoal.
func (s *PostgresGoalStore) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	if goal.ID == uuid.Nil || goal.UserID == uuid.Nil {
		return fmt.Errorf("%w: goal requires id and user id", store.ErrInvalidEntity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, created_at) VALUES ($1, $2, $3, $4)`,
		goal.ID, goal.UserID, goal.Title, goal.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert goal",
			slog.String("error", err.Error()),
			slog.String("goal_id", goal.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetGoal implements store.GoalStore.GetGoal.
func (s *PostgresGoalStore) GetGoal(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	var g domain.Goal
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM goals WHERE id = $1`, id).
		Scan(&g.ID, &g.UserID, &g.Title, &g.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err, store.ErrGoalNotFound)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

// PostgresMessageStore implements store.MessageStore.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageStore creates a message store on db.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMessageStore{db: db, logger: logger.With(slog.String("component", "message_store"))}
}

var _ store.MessageStore = (*PostgresMessageStore)(nil)

// CreateMessage implements store.MessageStore.CreateMessage.
func (s *PostgresMessageStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil || msg.UserID == uuid.Nil {
		return fmt.Errorf("%w: message requires id and user id", store.ErrInvalidEntity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		msg.ID, msg.UserID, msg.Text, msg.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert message",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetMessage implements store.MessageStore.GetMessage.
func (s *PostgresMessageStore) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var m domain.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, created_at FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.UserID, &m.Text, &m.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err, store.ErrMessageNotFound)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
