package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
	"payments-engine/internal/repository"
)

// AccountService serves read-only views of the ledger. Locked accounts stay readable.
type AccountService struct {
	store     *repository.Store
	snapshots *repository.SQLStore
	logger    *slog.Logger
}

// NewAccountService creates the service. snapshots may be nil when no database is configured.
func NewAccountService(store *repository.Store, snapshots *repository.SQLStore, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AccountService{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
	}
}

func (s *AccountService) GetAccount(clientID uint16) (domain.Account, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	return s.store.Account().GetAccount(clientID)
}

func (s *AccountService) ListAccounts() []domain.Account {
	s.store.RLock()
	defer s.store.RUnlock()

	return s.store.Account().ListAccounts()
}

func (s *AccountService) SnapshotsEnabled() bool {
	return s.snapshots != nil
}

// ExportSnapshot stores the current balances of every account under a new run id.
func (s *AccountService) ExportSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if s.snapshots == nil {
		return nil, errors.ErrSnapshotUnavailable
	}

	snapshot := &domain.Snapshot{
		RunID:     uuid.New(),
		CreatedAt: time.Now().UTC(),
		Accounts:  s.ListAccounts(),
	}

	err := s.snapshots.WithTransaction(ctx, func(tx *repository.SQLStore) error {
		return tx.Snapshot().CreateSnapshot(ctx, snapshot)
	})
	if err != nil {
		s.logger.Error("Snapshot export failed", "run_id", snapshot.RunID, "error", err)
		return nil, err
	}

	s.logger.Info("Snapshot exported", "run_id", snapshot.RunID, "accounts", len(snapshot.Accounts))
	return snapshot, nil
}

func (s *AccountService) GetSnapshot(ctx context.Context, runID uuid.UUID) (*domain.Snapshot, error) {
	if s.snapshots == nil {
		return nil, errors.ErrSnapshotUnavailable
	}

	snapshot, err := s.snapshots.Snapshot().GetSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, errors.ErrSnapshotNotFound.WithDetails(runID.String())
	}
	return snapshot, nil
}
