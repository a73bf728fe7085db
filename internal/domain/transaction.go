package domain

import (
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of a stored, balance-affecting transaction.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus tracks the dispute lifecycle:
//
//	completed -> disputed -> resolved | chargebacked
type TransactionStatus string

const (
	StatusCompleted    TransactionStatus = "completed"
	StatusDisputed     TransactionStatus = "disputed"
	StatusResolved     TransactionStatus = "resolved"
	StatusChargebacked TransactionStatus = "chargebacked"
)

// IsDisputeClosed reports whether the dispute workflow has ended for the transaction.
func (s TransactionStatus) IsDisputeClosed() bool {
	return s == StatusResolved || s == StatusChargebacked
}

// Transaction is keyed by (ClientID, TxID). Amount never changes after creation.
type Transaction struct {
	Type     TransactionType   `json:"type"`
	ClientID uint16            `json:"client"`
	TxID     uint32            `json:"tx"`
	Amount   decimal.Decimal   `json:"amount"`
	Status   TransactionStatus `json:"status"`
}

type TransactionRepository interface {
	InsertTransaction(tx Transaction)
	SetTransactionStatus(clientID uint16, txID uint32, status TransactionStatus) error
	TransactionExists(clientID uint16, txID uint32) bool
	GetDeposit(clientID uint16, txID uint32) (Transaction, error)
}
