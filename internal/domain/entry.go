package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EntryType is the kind of an input event.
type EntryType string

const (
	EntryDeposit    EntryType = "deposit"
	EntryWithdrawal EntryType = "withdrawal"
	EntryDispute    EntryType = "dispute"
	EntryResolve    EntryType = "resolve"
	EntryChargeback EntryType = "chargeback"
)

var (
	ErrConversionInvalidType    = errors.New("invalid transaction type for conversion")
	ErrConversionMissingAmount  = errors.New("missing amount for transaction")
	ErrConversionNegativeAmount = errors.New("negative amount for transaction")
	ErrUnknownEntryType         = errors.New("unknown entry type")
)

// ParseEntryType accepts the lowercase names, ignoring case and surrounding blanks.
func ParseEntryType(s string) (EntryType, error) {
	switch t := EntryType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntryDeposit, EntryWithdrawal, EntryDispute, EntryResolve, EntryChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntryType, s)
	}
}

func (t *EntryType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntryType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsMonetary reports whether the entry creates a stored transaction.
func (t EntryType) IsMonetary() bool {
	return t == EntryDeposit || t == EntryWithdrawal
}

// Entry is one input event. Amount is nil for dispute, resolve and chargeback.
type Entry struct {
	Type     EntryType        `json:"type"`
	ClientID uint16           `json:"client"`
	TxID     uint32           `json:"tx"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// ToTransaction converts a deposit or withdrawal entry into a completed Transaction.
func (e Entry) ToTransaction() (Transaction, error) {
	var txType TransactionType
	switch e.Type {
	case EntryDeposit:
		txType = TransactionTypeDeposit
	case EntryWithdrawal:
		txType = TransactionTypeWithdrawal
	default:
		return Transaction{}, ErrConversionInvalidType
	}

	if e.Amount == nil {
		return Transaction{}, ErrConversionMissingAmount
	}
	if e.Amount.IsNegative() {
		return Transaction{}, ErrConversionNegativeAmount
	}

	return Transaction{
		Type:     txType,
		ClientID: e.ClientID,
		TxID:     e.TxID,
		Amount:   *e.Amount,
		Status:   StatusCompleted,
	}, nil
}
