package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
	"payments-engine/internal/repository"
)

// EntrySource yields entries in input order and returns io.EOF when exhausted.
type EntrySource interface {
	Next() (domain.Entry, error)
}

// RunStats summarizes one pass over an entry source.
type RunStats struct {
	Processed      int                      `json:"processed"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	FailuresByCode map[errors.ErrorCode]int `json:"failures_by_code"`
}

// TransactionService applies entries to the ledger store one at a time.
type TransactionService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewTransactionService(store *repository.Store, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TransactionService{
		store:  store,
		logger: logger,
	}
}

// Process dispatches a single entry. Conversion failures are reported as ErrInvalidEntry
// wrapping the domain conversion error.
func (s *TransactionService) Process(entry domain.Entry) error {
	switch entry.Type {
	case domain.EntryDeposit, domain.EntryWithdrawal:
		tx, err := entry.ToTransaction()
		if err != nil {
			return errors.ErrInvalidEntry.Wrap(err)
		}
		return s.ProcessTransaction(tx)
	case domain.EntryDispute:
		return s.Dispute(entry.ClientID, entry.TxID)
	case domain.EntryResolve:
		return s.Resolve(entry.ClientID, entry.TxID)
	case domain.EntryChargeback:
		return s.Chargeback(entry.ClientID, entry.TxID)
	default:
		return errors.ErrInvalidEntry.Wrap(fmt.Errorf("%w: %q", domain.ErrUnknownEntryType, entry.Type))
	}
}

// ProcessStream drains src. Rejected entries are logged and counted; only a read
// error from src or context cancellation stops the run early.
func (s *TransactionService) ProcessStream(ctx context.Context, src EntrySource) (RunStats, error) {
	stats := RunStats{FailuresByCode: make(map[errors.ErrorCode]int)}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		entry, err := src.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading entries: %w", err)
		}

		stats.Processed++
		if err := s.Process(entry); err != nil {
			stats.Failed++
			stats.FailuresByCode[codeOf(err)]++
			s.logger.Warn("Error processing transaction",
				"type", entry.Type,
				"client", entry.ClientID,
				"tx", entry.TxID,
				"error", err)
			continue
		}
		stats.Succeeded++
	}

	s.logger.Info("Entry stream processed",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed)
	return stats, nil
}

// Deposit credits amount to the client's available and total balances.
func (s *TransactionService) Deposit(clientID uint16, txID uint32, amount decimal.Decimal) error {
	return s.ProcessTransaction(domain.Transaction{
		Type:     domain.TransactionTypeDeposit,
		ClientID: clientID,
		TxID:     txID,
		Amount:   amount,
		Status:   domain.StatusCompleted,
	})
}

// Withdraw debits amount from the client's available and total balances.
func (s *TransactionService) Withdraw(clientID uint16, txID uint32, amount decimal.Decimal) error {
	return s.ProcessTransaction(domain.Transaction{
		Type:     domain.TransactionTypeWithdrawal,
		ClientID: clientID,
		TxID:     txID,
		Amount:   amount,
		Status:   domain.StatusCompleted,
	})
}

// ProcessTransaction records a deposit or withdrawal. The account is created on
// first reference, even when the transaction is then rejected.
func (s *TransactionService) ProcessTransaction(tx domain.Transaction) error {
	s.store.Lock()
	defer s.store.Unlock()

	accounts := s.store.Account()
	transactions := s.store.Transaction()

	account := accounts.GetOrCreateAccount(tx.ClientID)

	if account.Locked {
		return lockedError(tx.ClientID)
	}

	if transactions.TransactionExists(tx.ClientID, tx.TxID) {
		return errors.ErrTransactionAlreadyExists.WithDetails(fmt.Sprintf("client %d tx %d", tx.ClientID, tx.TxID))
	}

	var availableDelta, totalDelta decimal.Decimal
	switch tx.Type {
	case domain.TransactionTypeDeposit:
		availableDelta, totalDelta = tx.Amount, tx.Amount
	case domain.TransactionTypeWithdrawal:
		if account.Available.LessThan(tx.Amount) {
			return errors.ErrInsufficientFunds
		}
		availableDelta, totalDelta = tx.Amount.Neg(), tx.Amount.Neg()
	default:
		return errors.ErrInvalidTransactionType.WithDetails(string(tx.Type))
	}

	if err := accounts.UpdateBalance(tx.ClientID, availableDelta, decimal.Zero, totalDelta); err != nil {
		return err
	}

	tx.Status = domain.StatusCompleted
	transactions.InsertTransaction(tx)

	s.logger.Debug("Transaction applied", "type", tx.Type, "client", tx.ClientID, "tx", tx.TxID, "amount", tx.Amount)
	return nil
}

// Dispute moves the deposit's amount from available to held.
func (s *TransactionService) Dispute(clientID uint16, txID uint32) error {
	s.store.Lock()
	defer s.store.Unlock()

	if s.store.Account().IsLocked(clientID) {
		return lockedError(clientID)
	}

	deposit, err := s.store.Transaction().GetDeposit(clientID, txID)
	if err != nil {
		return err
	}

	if deposit.Status != domain.StatusCompleted {
		return errors.ErrTransactionAlreadyDisputed.WithDetails(string(deposit.Status))
	}

	account, err := s.store.Account().GetAccount(clientID)
	if err != nil {
		return err
	}
	if account.Available.LessThan(deposit.Amount) {
		return errors.ErrInsufficientHoldFunds
	}

	return s.transition(clientID, txID, deposit.Amount.Neg(), deposit.Amount, decimal.Zero, domain.StatusDisputed)
}

// Resolve releases the held amount of a disputed deposit back to available.
func (s *TransactionService) Resolve(clientID uint16, txID uint32) error {
	s.store.Lock()
	defer s.store.Unlock()

	deposit, err := s.disputedDeposit(clientID, txID)
	if err != nil {
		return err
	}

	return s.transition(clientID, txID, deposit.Amount, deposit.Amount.Neg(), decimal.Zero, domain.StatusResolved)
}

// Chargeback removes the held amount of a disputed deposit and locks the account.
func (s *TransactionService) Chargeback(clientID uint16, txID uint32) error {
	s.store.Lock()
	defer s.store.Unlock()

	deposit, err := s.disputedDeposit(clientID, txID)
	if err != nil {
		return err
	}

	if err := s.transition(clientID, txID, decimal.Zero, deposit.Amount.Neg(), deposit.Amount.Neg(), domain.StatusChargebacked); err != nil {
		return err
	}

	s.store.Account().LockAccount(clientID)
	return nil
}

// disputedDeposit runs the checks shared by resolve and chargeback. Caller holds the lock.
func (s *TransactionService) disputedDeposit(clientID uint16, txID uint32) (domain.Transaction, error) {
	if s.store.Account().IsLocked(clientID) {
		return domain.Transaction{}, lockedError(clientID)
	}

	deposit, err := s.store.Transaction().GetDeposit(clientID, txID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if deposit.Status != domain.StatusDisputed {
		if deposit.Status.IsDisputeClosed() {
			return domain.Transaction{}, errors.ErrTransactionDisputeClosed.WithDetails(string(deposit.Status))
		}
		return domain.Transaction{}, errors.ErrTransactionIsNotDisputed
	}

	account, err := s.store.Account().GetAccount(clientID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if account.Held.LessThan(deposit.Amount) {
		return domain.Transaction{}, errors.ErrInsufficientHoldFunds
	}

	return deposit, nil
}

func (s *TransactionService) transition(
	clientID uint16,
	txID uint32,
	availableDelta, heldDelta, totalDelta decimal.Decimal,
	status domain.TransactionStatus,
) error {
	if err := s.store.Account().UpdateBalance(clientID, availableDelta, heldDelta, totalDelta); err != nil {
		return err
	}
	if err := s.store.Transaction().SetTransactionStatus(clientID, txID, status); err != nil {
		return err
	}

	s.logger.Debug("Dispute state changed", "client", clientID, "tx", txID, "status", status)
	return nil
}

func lockedError(clientID uint16) error {
	return errors.ErrAccountLocked.WithDetails(fmt.Sprintf("client %d", clientID))
}

func codeOf(err error) errors.ErrorCode {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return errors.InternalError
}
