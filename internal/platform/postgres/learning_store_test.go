package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestGetGoalNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM goals WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := NewPostgresGoalStore(db, nil).GetGoal(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrGoalNotFound)
}

func TestCreateNodesValidatesFirst(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresHierarchyStore(db, nil)

	err := s.CreateNodes(context.Background(), []*domain.Node{{ID: uuid.New(), HierarchyID: uuid.New(), UserID: uuid.New()}})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrNodeTitleEmpty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNodeWithParent(t *testing.T) {
	db, mock := newMock(t)
	id, hierarchyID, parentID, userID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM nodes WHERE id").WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "hierarchy_id", "parent_id", "user_id", "title", "description",
			"depth", "position", "card_count", "created_at"}).
			AddRow(id.String(), hierarchyID.String(), parentID.String(), userID.String(),
				"Channels", "", int64(1), int64(0), int64(4), now))

	n, err := NewPostgresHierarchyStore(db, nil).GetNode(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, n.ParentID)
	assert.Equal(t, parentID, *n.ParentID)
	assert.Equal(t, 4, n.CardCount)
}

func TestIncrementCardCountMissingNode(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE nodes SET card_count").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresHierarchyStore(db, nil).IncrementCardCount(context.Background(), uuid.New(), 2)
	assert.ErrorIs(t, err, store.ErrNodeNotFound)
}

func TestCreateCardsRejectsInvalidBatch(t *testing.T) {
	db, mock := newMock(t)
	msgID := uuid.New()
	good, err := domain.NewCard(uuid.New(), domain.CardSource{MessageID: &msgID}, domain.CardContent{Front: "q", Back: "a"})
	require.NoError(t, err)
	bad := &domain.Card{ID: uuid.New(), UserID: uuid.New(), Content: []byte(`{}`)}

	err = NewPostgresCardStore(db, nil).CreateCards(context.Background(), []*domain.Card{good, bad})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCardSource(t *testing.T) {
	db, mock := newMock(t)
	id, userID, nodeID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM cards WHERE id").WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "message_id", "node_id", "content", "created_at", "updated_at"}).
			AddRow(id.String(), userID.String(), nil, nodeID.String(), []byte(`{"front":"q","back":"a"}`), now, now))

	card, err := NewPostgresCardStore(db, nil).GetCard(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, card.MessageID)
	require.NotNil(t, card.NodeID)
	assert.Equal(t, nodeID, *card.NodeID)
}

func TestTransactorCommitsAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	tr := NewTransactor(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO goals").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tr.WithinTx(context.Background(), func(ctx context.Context, tx store.Stores) error {
		return tx.Goals.CreateGoal(ctx, &domain.Goal{ID: uuid.New(), UserID: uuid.New(), Title: "t", CreatedAt: time.Now()})
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = tr.WithinTx(context.Background(), func(ctx context.Context, tx store.Stores) error {
		return store.ErrNodeNotFound
	})
	assert.ErrorIs(t, err, store.ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
