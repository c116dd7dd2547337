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

// PostgresHierarchyStore implements store.HierarchyStore and store.NodeStore.
// Nodes only exist inside a hierarchy, so both live on one type.
type PostgresHierarchyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresHierarchyStore creates a hierarchy and node store on db.
func NewPostgresHierarchyStore(db store.DBTX, logger *slog.Logger) *PostgresHierarchyStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresHierarchyStore{db: db, logger: logger.With(slog.String("component", "hierarchy_store"))}
}

var (
	_ store.HierarchyStore = (*PostgresHierarchyStore)(nil)
	_ store.NodeStore      = (*PostgresHierarchyStore)(nil)
)

// CreateHierarchy implements store.HierarchyStore.CreateHierarchy.
func (s *PostgresHierarchyStore) CreateHierarchy(ctx context.Context, h *domain.Hierarchy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hierarchies (id, user_id, goal_id, topic, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.UserID, h.GoalID, h.Topic, h.Title, h.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert hierarchy",
			slog.String("error", err.Error()),
			slog.String("hierarchy_id", h.ID.String()),
			slog.String("goal_id", h.GoalID.String()))
		return MapError(err)
	}
	return nil
}

// GetHierarchy implements store.HierarchyStore.GetHierarchy.
func (s *PostgresHierarchyStore) GetHierarchy(ctx context.Context, id uuid.UUID) (*domain.Hierarchy, error) {
	var h domain.Hierarchy
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, goal_id, topic, title, created_at
		FROM hierarchies WHERE id = $1`, id).
		Scan(&h.ID, &h.UserID, &h.GoalID, &h.Topic, &h.Title, &h.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err, store.ErrHierarchyNotFound)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	return &h, nil
}

// CreateNodes implements store.NodeStore.CreateNodes.
func (s *PostgresHierarchyStore) CreateNodes(ctx context.Context, nodes []*domain.Node) error {
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO nodes (id, hierarchy_id, parent_id, user_id, title, description,
				depth, position, card_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			n.ID, n.HierarchyID, nullUUID(n.ParentID), n.UserID, n.Title, n.Description,
			n.Depth, n.Position, n.CardCount, n.CreatedAt)
		if err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert node",
				slog.String("error", err.Error()),
				slog.String("node_id", n.ID.String()))
			return MapError(err)
		}
	}
	return nil
}

const nodeColumns = `id, hierarchy_id, parent_id, user_id, title, description,
	depth, position, card_count, created_at`

// GetNode implements store.NodeStore.GetNode.
func (s *PostgresHierarchyStore) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrNodeNotFound)
	}
	return n, nil
}

// ListNodes implements store.NodeStore.ListNodes.
func (s *PostgresHierarchyStore) ListNodes(ctx context.Context, hierarchyID uuid.UUID) ([]*domain.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes WHERE hierarchy_id = $1
		ORDER BY depth ASC, position ASC`, hierarchyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var nodes []*domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node rows: %w", err)
	}
	return nodes, nil
}

// IncrementCardCount implements store.NodeStore.IncrementCardCount.
func (s *PostgresHierarchyStore) IncrementCardCount(ctx context.Context, id uuid.UUID, delta int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET card_count = card_count + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrNodeNotFound)
}

func scanNode(row rowScanner) (*domain.Node, error) {
	var (
		n      domain.Node
		parent uuid.NullUUID
	)
	if err := row.Scan(&n.ID, &n.HierarchyID, &parent, &n.UserID, &n.Title, &n.Description,
		&n.Depth, &n.Position, &n.CardCount, &n.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.UUID
		n.ParentID = &id
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
