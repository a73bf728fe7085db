package repository

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
)

type accountRepository struct {
	accounts map[uint16]*domain.Account
	logger   *slog.Logger
}

func NewAccountRepository(logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		accounts: make(map[uint16]*domain.Account),
		logger:   orDiscard(logger),
	}
}

func (r *accountRepository) GetOrCreateAccount(clientID uint16) domain.Account {
	if account, ok := r.accounts[clientID]; ok {
		return *account
	}

	account := domain.NewAccount(clientID)
	r.accounts[clientID] = &account
	r.logger.Debug("Account created", "client", clientID)
	return account
}

func (r *accountRepository) GetAccount(clientID uint16) (domain.Account, error) {
	account, ok := r.accounts[clientID]
	if !ok {
		return domain.Account{}, errors.ErrAccountNotFound.WithDetails(fmt.Sprintf("client %d", clientID))
	}
	return *account, nil
}

// UpdateBalance applies all three deltas or none of them.
func (r *accountRepository) UpdateBalance(clientID uint16, availableDelta, heldDelta, totalDelta decimal.Decimal) error {
	account, ok := r.accounts[clientID]
	if !ok {
		r.logger.Warn("No account found to update", "client", clientID)
		return errors.ErrAccountNotFound.WithDetails(fmt.Sprintf("client %d", clientID))
	}

	available := account.Available.Add(availableDelta)
	held := account.Held.Add(heldDelta)
	total := account.Total.Add(totalDelta)

	if available.IsNegative() || held.IsNegative() || total.IsNegative() {
		return errors.ErrInsufficientFunds
	}

	account.Available = available
	account.Held = held
	account.Total = total

	r.logger.Debug("Account balance updated",
		"client", clientID,
		"available", available,
		"held", held,
		"total", total)
	return nil
}

// LockAccount is a no-op for unknown clients.
func (r *accountRepository) LockAccount(clientID uint16) {
	if account, ok := r.accounts[clientID]; ok {
		account.Locked = true
		r.logger.Info("Account locked", "client", clientID)
	}
}

func (r *accountRepository) IsLocked(clientID uint16) bool {
	account, ok := r.accounts[clientID]
	return ok && account.Locked
}

// ListAccounts returns copies ordered by client id.
func (r *accountRepository) ListAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, *account)
	}
	slices.SortFunc(accounts, func(a, b domain.Account) int {
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	return accounts
}
