package repository

import (
	"io"
	"log/slog"
	"sync"

	"payments-engine/internal/domain"
)

// Store owns the account and transaction collections of one ledger.
// The repositories are not synchronized: callers hold the embedded lock
// for the whole of one event.
type Store struct {
	sync.RWMutex
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
}

// NewStore creates an empty in-memory ledger store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		accounts:     NewAccountRepository(logger),
		transactions: NewTransactionRepository(logger),
	}
}

// Account returns the account collection
func (s *Store) Account() domain.AccountRepository {
	return s.accounts
}

// Transaction returns the transaction collection
func (s *Store) Transaction() domain.TransactionRepository {
	return s.transactions
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
