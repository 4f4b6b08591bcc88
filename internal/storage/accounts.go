package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registro/internal/core"
)

const accountColumns = `id, owner_id, name, kind, currency, initial_balance_cents, balance_cents, deleted_at IS NOT NULL`

func scanAccount(row *sql.Row) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &a.Currency,
		&a.InitialBalance.Cents, &a.Balance.Cents, &a.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

// CreateAccount inserts an account with its balance set to the initial
// balance and returns the stored row.
func (q *Queries) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO accounts (owner_id, name, kind, currency, initial_balance_cents, balance_cents)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+accountColumns,
		a.OwnerID, a.Name, a.Kind, a.Currency, a.InitialBalance.Cents, a.InitialBalance.Cents)
	return scanAccount(row)
}

// GetAccount fetches an account by id, soft-deleted rows included; the
// caller decides how a deleted or foreign account should fail.
func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns the owner's non-deleted accounts.
func (q *Queries) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &a.Currency,
			&a.InitialBalance.Cents, &a.Balance.Cents, &a.Deleted); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ApplyBalanceDelta adjusts an account balance with an atomic in-database
// increment. It must run inside the same transaction as the movement write
// it accounts for.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, delta core.BalanceDelta) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		delta.Cents, delta.AccountID)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply balance delta rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", delta.AccountID, core.ErrNotFound)
	}
	return nil
}

// SoftDeleteAccount marks an account deleted.
func (q *Queries) SoftDeleteAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete account rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	return nil
}
