package repository

import (
	"fmt"
	"log/slog"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
)

type transactionRepository struct {
	// client id -> tx id -> transaction
	transactions map[uint16]map[uint32]*domain.Transaction
	logger       *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		transactions: make(map[uint16]map[uint32]*domain.Transaction),
		logger:       orDiscard(logger),
	}
}

// InsertTransaction does not check for duplicates; callers do.
func (r *transactionRepository) InsertTransaction(tx domain.Transaction) {
	bucket, ok := r.transactions[tx.ClientID]
	if !ok {
		bucket = make(map[uint32]*domain.Transaction)
		r.transactions[tx.ClientID] = bucket
	}
	bucket[tx.TxID] = &tx

	r.logger.Debug("Transaction recorded",
		"client", tx.ClientID,
		"tx", tx.TxID,
		"type", tx.Type,
		"amount", tx.Amount)
}

func (r *transactionRepository) SetTransactionStatus(clientID uint16, txID uint32, status domain.TransactionStatus) error {
	tx, ok := r.lookup(clientID, txID)
	if !ok {
		return errors.ErrTransactionNotFound.WithDetails(fmt.Sprintf("client %d tx %d", clientID, txID))
	}

	tx.Status = status
	r.logger.Debug("Transaction status updated", "client", clientID, "tx", txID, "status", status)
	return nil
}

func (r *transactionRepository) TransactionExists(clientID uint16, txID uint32) bool {
	_, ok := r.lookup(clientID, txID)
	return ok
}

// GetDeposit returns a copy of the transaction, which must be a deposit.
func (r *transactionRepository) GetDeposit(clientID uint16, txID uint32) (domain.Transaction, error) {
	tx, ok := r.lookup(clientID, txID)
	if !ok {
		return domain.Transaction{}, errors.ErrTransactionNotFound.WithDetails(fmt.Sprintf("client %d tx %d", clientID, txID))
	}
	if tx.Type != domain.TransactionTypeDeposit {
		return domain.Transaction{}, errors.ErrInvalidTransactionType.WithDetails(fmt.Sprintf("tx %d is a %s", txID, tx.Type))
	}
	return *tx, nil
}

func (r *transactionRepository) lookup(clientID uint16, txID uint32) (*domain.Transaction, bool) {
	bucket, ok := r.transactions[clientID]
	if !ok {
		return nil, false
	}
	tx, ok := bucket[txID]
	return tx, ok
}
