package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
)

type snapshotRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewSnapshotRepository(db SQLExecutor, logger *slog.Logger) domain.SnapshotRepository {
	return &snapshotRepository{
		db:     db,
		logger: orDiscard(logger),
	}
}

func (r *snapshotRepository) CreateSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshot_runs (run_id, account_count, created_at)
		VALUES ($1, $2, $3)
	`, snapshot.RunID, len(snapshot.Accounts), snapshot.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			r.logger.Warn("Duplicate snapshot export attempt", "run_id", snapshot.RunID)
			return errors.ErrDuplicateSnapshot
		}
		r.logger.Error("Failed to create snapshot run", "run_id", snapshot.RunID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create snapshot run").WithDetails(err.Error())
	}

	query := `
		INSERT INTO account_snapshots (run_id, client_id, available, held, total, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, account := range snapshot.Accounts {
		_, err := r.db.ExecContext(ctx, query,
			snapshot.RunID,
			int(account.ClientID),
			account.Available.String(),
			account.Held.String(),
			account.Total.String(),
			account.Locked,
		)
		if err != nil {
			r.logger.Error("Failed to store account snapshot",
				"run_id", snapshot.RunID,
				"client", account.ClientID,
				"error", err)
			return errors.NewAppError(errors.InternalError, "failed to store account snapshot").WithDetails(err.Error())
		}
	}

	r.logger.Info("Snapshot stored", "run_id", snapshot.RunID, "accounts", len(snapshot.Accounts))
	return nil
}

func (r *snapshotRepository) GetSnapshot(ctx context.Context, runID uuid.UUID) (*domain.Snapshot, error) {
	snapshot := domain.Snapshot{RunID: runID}

	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM snapshot_runs WHERE run_id = $1`, runID,
	).Scan(&snapshot.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get snapshot run", "run_id", runID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get snapshot").WithDetails(err.Error())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT client_id, available, held, total, locked
		FROM account_snapshots WHERE run_id = $1
		ORDER BY client_id
	`, runID)
	if err != nil {
		r.logger.Error("Failed to list account snapshots", "run_id", runID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get snapshot").WithDetails(err.Error())
	}
	defer rows.Close()

	snapshot.Accounts = []domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		snapshot.Accounts = append(snapshot.Accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read snapshot rows").WithDetails(err.Error())
	}

	return &snapshot, nil
}

func scanAccount(rows *sql.Rows) (domain.Account, error) {
	var (
		account                         domain.Account
		clientID                        int64
		availableStr, heldStr, totalStr string
	)

	if err := rows.Scan(&clientID, &availableStr, &heldStr, &totalStr, &account.Locked); err != nil {
		return domain.Account{}, errors.NewAppError(errors.InternalError, "failed to scan account snapshot").WithDetails(err.Error())
	}
	account.ClientID = uint16(clientID)

	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{availableStr, &account.Available},
		{heldStr, &account.Held},
		{totalStr, &account.Total},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return domain.Account{}, errors.NewAppError(errors.InternalError, "failed to parse balance").WithDetails(err.Error())
		}
		*field.dst = value
	}

	return account, nil
}
