package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InsufficientFunds          ErrorCode = "insufficient_funds"
	InsufficientHoldFunds      ErrorCode = "insufficient_hold_funds"
	AccountLocked              ErrorCode = "account_locked"
	AccountNotFound            ErrorCode = "account_not_found"
	TransactionNotFound        ErrorCode = "transaction_not_found"
	InvalidTransactionType     ErrorCode = "invalid_transaction_type"
	TransactionAlreadyExists   ErrorCode = "transaction_already_exists"
	TransactionAlreadyDisputed ErrorCode = "transaction_already_disputed"
	TransactionDisputeClosed   ErrorCode = "transaction_dispute_closed"
	TransactionIsNotDisputed   ErrorCode = "transaction_not_disputed"
	InvalidEntry               ErrorCode = "invalid_entry"
	InvalidInput               ErrorCode = "invalid_input"
	SnapshotUnavailable        ErrorCode = "snapshot_unavailable"
	DuplicateSnapshot          ErrorCode = "duplicate_snapshot"
	SnapshotNotFound           ErrorCode = "snapshot_not_found"
	InternalError              ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause, e.g. the conversion error behind InvalidEntry.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so sentinels still match after WithDetails.
// A closed dispute also reports as already disputed.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == TransactionDisputeClosed && t.Code == TransactionAlreadyDisputed
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e with err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	if cp.Details == "" && err != nil {
		cp.Details = err.Error()
	}
	return &cp
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound, TransactionNotFound, SnapshotNotFound:
		return http.StatusNotFound
	case TransactionAlreadyExists, TransactionAlreadyDisputed, TransactionDisputeClosed,
		TransactionIsNotDisputed, InvalidTransactionType, DuplicateSnapshot:
		return http.StatusConflict
	case InsufficientFunds, InsufficientHoldFunds:
		return http.StatusUnprocessableEntity
	case AccountLocked:
		return http.StatusLocked
	case InvalidEntry, InvalidInput:
		return http.StatusBadRequest
	case SnapshotUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for the ledger taxonomy
var (
	ErrInsufficientFunds          = NewAppError(InsufficientFunds, "insufficient funds for transaction")
	ErrInsufficientHoldFunds      = NewAppError(InsufficientHoldFunds, "insufficient hold funds for transaction")
	ErrAccountLocked              = NewAppError(AccountLocked, "account is locked")
	ErrAccountNotFound            = NewAppError(AccountNotFound, "account not found")
	ErrTransactionNotFound        = NewAppError(TransactionNotFound, "transaction not found")
	ErrInvalidTransactionType     = NewAppError(InvalidTransactionType, "invalid transaction type for operation")
	ErrTransactionAlreadyExists   = NewAppError(TransactionAlreadyExists, "transaction already exists")
	ErrTransactionAlreadyDisputed = NewAppError(TransactionAlreadyDisputed, "transaction already disputed")
	ErrTransactionDisputeClosed   = NewAppError(TransactionDisputeClosed, "transaction dispute already resolved or charged back")
	ErrTransactionIsNotDisputed   = NewAppError(TransactionIsNotDisputed, "transaction is not disputed")
	ErrInvalidEntry               = NewAppError(InvalidEntry, "invalid entry for transaction conversion")
	ErrInvalidInput               = NewAppError(InvalidInput, "invalid input")
	ErrSnapshotUnavailable        = NewAppError(SnapshotUnavailable, "snapshot storage is not configured")
	ErrDuplicateSnapshot          = NewAppError(DuplicateSnapshot, "snapshot run already exported")
	ErrSnapshotNotFound           = NewAppError(SnapshotNotFound, "snapshot not found")
	ErrCannotBeginTransaction     = NewAppError(InternalError, "executor cannot begin a database transaction")
)
