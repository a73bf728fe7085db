package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
)

// SQLStore provides the snapshot repositories with transaction support
type SQLStore struct {
	executor SQLExecutor
	logger   *slog.Logger
}

// NewSQLStore creates a new SQLStore instance
func NewSQLStore(db *sql.DB, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		executor: db,
		logger:   orDiscard(logger),
	}
}

// Snapshot returns a SnapshotRepository using the current executor
func (s *SQLStore) Snapshot() domain.SnapshotRepository {
	return NewSnapshotRepository(s.executor, s.logger)
}

// WithTransaction executes fn within a database transaction
func (s *SQLStore) WithTransaction(ctx context.Context, fn func(*SQLStore) error) error {
	// Only sql.DB can begin transactions
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txStore := &SQLStore{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
