package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-jobs/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolationCode}, store.ErrDuplicate},
		{"foreign key violation", &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "hierarchies_goal_id_fkey"}, store.ErrInvalidEntity},
		{"check violation", &pgconn.PgError{Code: checkViolationCode, ConstraintName: "jobs_attempts_bounded"}, store.ErrInvalidEntity},
		{"not null violation", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "payload"}, store.ErrInvalidEntity},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode}), store.ErrDuplicate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tc.err), tc.wantErr)
		})
	}

	assert.Nil(t, MapError(nil))

	other := errors.New("connection reset")
	assert.Equal(t, other, MapError(other))

	serialization := &pgconn.PgError{Code: "40001"}
	assert.Equal(t, error(serialization), MapError(serialization))
}

func TestMapNotFound(t *testing.T) {
	assert.Equal(t, store.ErrGoalNotFound, mapNotFound(sql.ErrNoRows, store.ErrGoalNotFound))
	assert.ErrorIs(t, mapNotFound(&pgconn.PgError{Code: uniqueViolationCode}, store.ErrGoalNotFound), store.ErrDuplicate)
}

func TestViolationHelpers(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: foreignKeyViolationCode})))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.Error(t, checkRowsAffected(nil, store.ErrNodeNotFound))
	assert.Equal(t, store.ErrNodeNotFound, checkRowsAffected(sqlmock.NewResult(0, 0), store.ErrNodeNotFound))
	assert.NoError(t, checkRowsAffected(sqlmock.NewResult(0, 1), store.ErrNodeNotFound))
}
