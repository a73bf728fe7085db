package service

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
	"payments-engine/internal/repository"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService() (*TransactionService, *repository.Store) {
	store := repository.NewStore(nil)
	return NewTransactionService(store, nil), store
}

func assertBalances(t *testing.T, store *repository.Store, clientID uint16, available, held, total string) {
	t.Helper()
	account, err := store.Account().GetAccount(clientID)
	require.NoError(t, err)
	assert.True(t, dec(available).Equal(account.Available), "available: want %s got %s", available, account.Available)
	assert.True(t, dec(held).Equal(account.Held), "held: want %s got %s", held, account.Held)
	assert.True(t, dec(total).Equal(account.Total), "total: want %s got %s", total, account.Total)
	assert.True(t, account.Total.Equal(account.Available.Add(account.Held)), "total must equal available + held")
}

func depositStatus(t *testing.T, store *repository.Store, clientID uint16, txID uint32) domain.TransactionStatus {
	t.Helper()
	tx, err := store.Transaction().GetDeposit(clientID, txID)
	require.NoError(t, err)
	return tx.Status
}

func TestDepositWithdrawalRoundTrip(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("100")))
	require.NoError(t, svc.Withdraw(1, 2, dec("100")))

	assertBalances(t, store, 1, "0", "0", "0")
}

func TestDeposit_CreatesAccountAndTransaction(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(7, 3, dec("1.2345")))

	assertBalances(t, store, 7, "1.2345", "0", "1.2345")
	assert.Equal(t, domain.StatusCompleted, depositStatus(t, store, 7, 3))
}

func TestDuplicateTransactionRejected(t *testing.T) {
	tests := []struct {
		name  string
		apply func(svc *TransactionService) error
		want  [3]string
	}{
		{
			name:  "deposit replay",
			apply: func(svc *TransactionService) error { return svc.Deposit(1, 1, dec("10")) },
			want:  [3]string{"10", "0", "10"},
		},
		{
			name: "withdrawal replay",
			apply: func(svc *TransactionService) error {
				if err := svc.Deposit(1, 100, dec("50")); err != nil && !stderrors.Is(err, errors.ErrTransactionAlreadyExists) {
					return err
				}
				return svc.Withdraw(1, 2, dec("20"))
			},
			want: [3]string{"30", "0", "30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()

			require.NoError(t, tt.apply(svc))
			err := tt.apply(svc)
			assert.ErrorIs(t, err, errors.ErrTransactionAlreadyExists)

			assertBalances(t, store, 1, tt.want[0], tt.want[1], tt.want[2])
		})
	}
}

func TestDeposit_DuplicateIDAcrossTypes(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	err := svc.Withdraw(1, 1, dec("5"))
	assert.ErrorIs(t, err, errors.ErrTransactionAlreadyExists)
	assertBalances(t, store, 1, "10", "0", "10")
}

func TestDeposit_SameIDOnDifferentAccounts(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	require.NoError(t, svc.Deposit(2, 1, dec("20")))

	assertBalances(t, store, 1, "10", "0", "10")
	assertBalances(t, store, 2, "20", "0", "20")
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	err := svc.Withdraw(1, 2, dec("10.0001"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assertBalances(t, store, 1, "10", "0", "10")

	// rejected withdrawal is not recorded, so its id stays usable
	assert.False(t, store.Transaction().TransactionExists(1, 2))
	require.NoError(t, svc.Withdraw(1, 2, dec("4")))
	assertBalances(t, store, 1, "6", "0", "6")
}

func TestWithdraw_CreatesAccountOnFirstReference(t *testing.T) {
	svc, store := newTestService()

	err := svc.Withdraw(5, 1, dec("1"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assertBalances(t, store, 5, "0", "0", "0")
}

func TestDispute_InsufficientHoldFunds(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("100")))
	require.NoError(t, svc.Withdraw(1, 2, dec("80")))

	err := svc.Dispute(1, 1)
	assert.ErrorIs(t, err, errors.ErrInsufficientHoldFunds)
	assertBalances(t, store, 1, "20", "0", "20")
	assert.Equal(t, domain.StatusCompleted, depositStatus(t, store, 1, 1))
}

func TestDisputeResolveCycle(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("30")))
	// simulate earlier deposits
	require.NoError(t, store.Account().UpdateBalance(1, dec("70"), decimal.Zero, dec("70")))
	assertBalances(t, store, 1, "100", "0", "100")

	require.NoError(t, svc.Withdraw(1, 2, dec("50")))
	assertBalances(t, store, 1, "50", "0", "50")

	require.NoError(t, svc.Dispute(1, 1))
	assertBalances(t, store, 1, "20", "30", "50")
	assert.Equal(t, domain.StatusDisputed, depositStatus(t, store, 1, 1))

	require.NoError(t, svc.Resolve(1, 1))
	assertBalances(t, store, 1, "50", "0", "50")
	assert.Equal(t, domain.StatusResolved, depositStatus(t, store, 1, 1))
}

func TestChargeback_LocksAccount(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("100")))
	require.NoError(t, svc.Deposit(1, 2, dec("1")))
	require.NoError(t, svc.Dispute(1, 2))
	assertBalances(t, store, 1, "100", "1", "101")

	require.NoError(t, svc.Chargeback(1, 2))
	assertBalances(t, store, 1, "100", "0", "100")
	assert.True(t, store.Account().IsLocked(1))
	assert.Equal(t, domain.StatusChargebacked, depositStatus(t, store, 1, 2))

	attempts := map[string]func() error{
		"deposit":    func() error { return svc.Deposit(1, 3, dec("5")) },
		"withdrawal": func() error { return svc.Withdraw(1, 4, dec("5")) },
		"dispute":    func() error { return svc.Dispute(1, 1) },
		"resolve":    func() error { return svc.Resolve(1, 2) },
		"chargeback": func() error { return svc.Chargeback(1, 2) },
	}
	for name, attempt := range attempts {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, attempt(), errors.ErrAccountLocked)
		})
	}

	assertBalances(t, store, 1, "100", "0", "100")
	assert.Equal(t, domain.StatusCompleted, depositStatus(t, store, 1, 1))
	assert.False(t, store.Transaction().TransactionExists(1, 3))
}

func TestChargeback_OtherAccountsUnaffected(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	require.NoError(t, svc.Deposit(2, 2, dec("10")))
	require.NoError(t, svc.Dispute(1, 1))
	require.NoError(t, svc.Chargeback(1, 1))

	assert.False(t, store.Account().IsLocked(2))
	require.NoError(t, svc.Withdraw(2, 3, dec("4")))
	assertBalances(t, store, 2, "6", "0", "6")
}

func TestDisputeStateMachine(t *testing.T) {
	tests := []struct {
		name    string
		setup   []func(svc *TransactionService) error
		action  func(svc *TransactionService) error
		wantErr *errors.AppError
	}{
		{
			name:    "dispute unknown transaction",
			action:  func(svc *TransactionService) error { return svc.Dispute(1, 99) },
			wantErr: errors.ErrTransactionNotFound,
		},
		{
			name:    "dispute withdrawal",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), withdraw(1, 2, "5")},
			action:  func(svc *TransactionService) error { return svc.Dispute(1, 2) },
			wantErr: errors.ErrInvalidTransactionType,
		},
		{
			name:    "dispute twice",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), dispute(1, 1)},
			action:  func(svc *TransactionService) error { return svc.Dispute(1, 1) },
			wantErr: errors.ErrTransactionAlreadyDisputed,
		},
		{
			name:    "dispute after resolve",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), dispute(1, 1), resolve(1, 1)},
			action:  func(svc *TransactionService) error { return svc.Dispute(1, 1) },
			wantErr: errors.ErrTransactionAlreadyDisputed,
		},
		{
			name:    "resolve undisputed",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10")},
			action:  func(svc *TransactionService) error { return svc.Resolve(1, 1) },
			wantErr: errors.ErrTransactionIsNotDisputed,
		},
		{
			name:    "chargeback undisputed",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10")},
			action:  func(svc *TransactionService) error { return svc.Chargeback(1, 1) },
			wantErr: errors.ErrTransactionIsNotDisputed,
		},
		{
			name:    "resolve twice",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), dispute(1, 1), resolve(1, 1)},
			action:  func(svc *TransactionService) error { return svc.Resolve(1, 1) },
			wantErr: errors.ErrTransactionDisputeClosed,
		},
		{
			name:    "chargeback after resolve",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), dispute(1, 1), resolve(1, 1)},
			action:  func(svc *TransactionService) error { return svc.Chargeback(1, 1) },
			wantErr: errors.ErrTransactionDisputeClosed,
		},
		{
			name:    "resolve unknown transaction",
			action:  func(svc *TransactionService) error { return svc.Resolve(3, 1) },
			wantErr: errors.ErrTransactionNotFound,
		},
		{
			name:    "chargeback withdrawal",
			setup:   []func(*TransactionService) error{deposit(1, 1, "10"), withdraw(1, 2, "5")},
			action:  func(svc *TransactionService) error { return svc.Chargeback(1, 2) },
			wantErr: errors.ErrInvalidTransactionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			for _, step := range tt.setup {
				require.NoError(t, step(svc))
			}
			before := store.Account().ListAccounts()

			err := tt.action(svc)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, store.Account().ListAccounts(), "a rejected event must not change balances")
		})
	}
}

func TestResolvedDisputeStillReportsAlreadyDisputed(t *testing.T) {
	svc, _ := newTestService()
	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	require.NoError(t, svc.Dispute(1, 1))
	require.NoError(t, svc.Resolve(1, 1))

	err := svc.Resolve(1, 1)
	assert.ErrorIs(t, err, errors.ErrTransactionAlreadyDisputed)
	assert.ErrorIs(t, err, errors.ErrTransactionDisputeClosed)
}

func TestDispute_WrongAccount(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("100")))
	require.NoError(t, svc.Deposit(2, 2, dec("5")))

	err := svc.Dispute(2, 1)
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)

	assertBalances(t, store, 1, "100", "0", "100")
	assertBalances(t, store, 2, "5", "0", "5")
	assert.Equal(t, domain.StatusCompleted, depositStatus(t, store, 1, 1))
}

func TestResolve_InsufficientHoldFunds(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.Deposit(1, 1, dec("10")))
	require.NoError(t, svc.Dispute(1, 1))
	// drain the hold behind the processor's back
	require.NoError(t, store.Account().UpdateBalance(1, dec("4"), dec("-4"), decimal.Zero))

	assert.ErrorIs(t, svc.Resolve(1, 1), errors.ErrInsufficientHoldFunds)
	assert.ErrorIs(t, svc.Chargeback(1, 1), errors.ErrInsufficientHoldFunds)
	assert.Equal(t, domain.StatusDisputed, depositStatus(t, store, 1, 1))
	assert.False(t, store.Account().IsLocked(1))
}

func TestProcess_Dispatch(t *testing.T) {
	svc, store := newTestService()
	amount := dec("100.0")

	entries := []domain.Entry{
		{Type: domain.EntryDeposit, ClientID: 1, TxID: 1, Amount: &amount},
		{Type: domain.EntryDispute, ClientID: 1, TxID: 1},
		{Type: domain.EntryResolve, ClientID: 1, TxID: 1},
	}
	for _, entry := range entries {
		require.NoError(t, svc.Process(entry))
	}
	assertBalances(t, store, 1, "100", "0", "100")

	err := svc.Process(domain.Entry{Type: domain.EntryDeposit, ClientID: 1, TxID: 2})
	assert.ErrorIs(t, err, errors.ErrInvalidEntry)
	assert.ErrorIs(t, err, domain.ErrConversionMissingAmount)

	err = svc.Process(domain.Entry{Type: domain.EntryType("refund"), ClientID: 1, TxID: 2})
	assert.ErrorIs(t, err, errors.ErrInvalidEntry)
	assert.ErrorIs(t, err, domain.ErrUnknownEntryType)
}

type sliceSource struct {
	entries []domain.Entry
	err     error
}

func (s *sliceSource) Next() (domain.Entry, error) {
	if len(s.entries) == 0 {
		if s.err != nil {
			return domain.Entry{}, s.err
		}
		return domain.Entry{}, io.EOF
	}
	entry := s.entries[0]
	s.entries = s.entries[1:]
	return entry, nil
}

func TestProcessStream(t *testing.T) {
	svc, store := newTestService()
	hundred, fifty := dec("100"), dec("50")

	src := &sliceSource{entries: []domain.Entry{
		{Type: domain.EntryDeposit, ClientID: 1, TxID: 1, Amount: &hundred},
		{Type: domain.EntryWithdrawal, ClientID: 1, TxID: 2, Amount: &fifty},
		{Type: domain.EntryDispute, ClientID: 1, TxID: 1},
		{Type: domain.EntryDispute, ClientID: 1, TxID: 2},
		{Type: domain.EntryDeposit, ClientID: 1, TxID: 1, Amount: &fifty},
		{Type: domain.EntryChargeback, ClientID: 1, TxID: 3},
	}}

	stats, err := svc.ProcessStream(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Processed)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 4, stats.Failed)
	assert.Equal(t, 1, stats.FailuresByCode[errors.InsufficientHoldFunds])
	assert.Equal(t, 1, stats.FailuresByCode[errors.InvalidTransactionType])
	assert.Equal(t, 1, stats.FailuresByCode[errors.TransactionAlreadyExists])
	assert.Equal(t, 1, stats.FailuresByCode[errors.TransactionNotFound])

	assertBalances(t, store, 1, "50", "0", "50")
}

func TestProcessStream_SourceError(t *testing.T) {
	svc, _ := newTestService()
	boom := stderrors.New("disk on fire")
	amount := dec("1")

	stats, err := svc.ProcessStream(context.Background(), &sliceSource{
		entries: []domain.Entry{{Type: domain.EntryDeposit, ClientID: 1, TxID: 1, Amount: &amount}},
		err:     boom,
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestProcessStream_Cancelled(t *testing.T) {
	svc, _ := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := svc.ProcessStream(ctx, &sliceSource{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
}

func deposit(clientID uint16, txID uint32, amount string) func(*TransactionService) error {
	return func(svc *TransactionService) error { return svc.Deposit(clientID, txID, dec(amount)) }
}

func withdraw(clientID uint16, txID uint32, amount string) func(*TransactionService) error {
	return func(svc *TransactionService) error { return svc.Withdraw(clientID, txID, dec(amount)) }
}

func dispute(clientID uint16, txID uint32) func(*TransactionService) error {
	return func(svc *TransactionService) error { return svc.Dispute(clientID, txID) }
}

func resolve(clientID uint16, txID uint32) func(*TransactionService) error {
	return func(svc *TransactionService) error { return svc.Resolve(clientID, txID) }
}
