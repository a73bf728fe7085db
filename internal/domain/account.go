package domain

import (
	"github.com/shopspring/decimal"
)

// Account holds the balances of a single client.
// Total always equals Available + Held after a successful mutation.
type Account struct {
	ClientID  uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// NewAccount returns an unlocked account with zero balances.
func NewAccount(clientID uint16) Account {
	return Account{
		ClientID:  clientID,
		Available: decimal.Zero,
		Held:      decimal.Zero,
		Total:     decimal.Zero,
	}
}

type AccountRepository interface {
	GetOrCreateAccount(clientID uint16) Account
	GetAccount(clientID uint16) (Account, error)
	UpdateBalance(clientID uint16, availableDelta, heldDelta, totalDelta decimal.Decimal) error
	LockAccount(clientID uint16)
	IsLocked(clientID uint16) bool
	ListAccounts() []Account
}
