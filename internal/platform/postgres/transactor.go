package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/scry-jobs/internal/store"
)

// NewStores returns every store bound to db. db may be a pool or a transaction.
func NewStores(db store.DBTX, logger *slog.Logger) store.Stores {
	hierarchies := NewPostgresHierarchyStore(db, logger)
	return store.Stores{
		Jobs:        NewPostgresJobStore(db, logger),
		Goals:       NewPostgresGoalStore(db, logger),
		Messages:    NewPostgresMessageStore(db, logger),
		Hierarchies: hierarchies,
		Nodes:       hierarchies,
		Cards:       NewPostgresCardStore(db, logger),
	}
}

// Transactor implements store.Transactor on a connection pool.
type Transactor struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTransactor creates a Transactor on db.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{db: db, logger: logger}
}

var _ store.Transactor = (*Transactor)(nil)

// WithinTx implements store.Transactor.WithinTx.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewStores(tx, t.logger))
	})
}
