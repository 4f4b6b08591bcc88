package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"registro/internal/core"
)

const movementColumns = `id, owner_id, account_id, destination_id, category_id, direction,
	amount_cents, description, occurred_on, tags, rule_id, deleted_at IS NOT NULL`

// PendingSyncMovement is the minimal row handed to the sync worker's
// backup scan.
type PendingSyncMovement struct {
	ID        int64
	CreatedAt time.Time
}

func scanMovementRow(scan func(dest ...any) error) (core.Movement, error) {
	var m core.Movement
	var destination, category, rule sql.NullInt64
	var occurred, tags string
	err := scan(&m.ID, &m.OwnerID, &m.AccountID, &destination, &category, &m.Direction,
		&m.Amount.Cents, &m.Description, &occurred, &tags, &rule, &m.Deleted)
	if err != nil {
		return core.Movement{}, err
	}
	m.DestinationID = idFromNull(destination)
	m.CategoryID = idFromNull(category)
	m.RuleID = idFromNull(rule)
	m.Tags = splitTags(tags)
	date, err := core.ParseDate(occurred)
	if err != nil {
		return core.Movement{}, err
	}
	m.OccurredOn = date
	return m, nil
}

// InsertMovement persists a movement and returns the stored row.
func (q *Queries) InsertMovement(ctx context.Context, m core.Movement) (core.Movement, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO movements (owner_id, account_id, destination_id, category_id, direction,
			amount_cents, description, occurred_on, tags, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+movementColumns,
		m.OwnerID, m.AccountID, nullID(m.DestinationID), nullID(m.CategoryID), m.Direction,
		m.Amount.Cents, m.Description, m.OccurredOn.String(), joinTags(m.Tags), nullID(m.RuleID))
	stored, err := scanMovementRow(row.Scan)
	if err != nil {
		return core.Movement{}, fmt.Errorf("insert movement: %w", err)
	}
	return stored, nil
}

// GetMovement fetches a movement by id, soft-deleted rows included.
func (q *Queries) GetMovement(ctx context.Context, id int64) (core.Movement, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+movementColumns+` FROM movements WHERE id = ?`, id)
	stored, err := scanMovementRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, fmt.Errorf("movement %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Movement{}, fmt.Errorf("get movement: %w", err)
	}
	return stored, nil
}

// UpdateMovement overwrites every editable column of a stored movement and
// resets its sync status so the edit is exported again.
func (q *Queries) UpdateMovement(ctx context.Context, m core.Movement) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE movements
		SET account_id = ?, destination_id = ?, category_id = ?, direction = ?,
			amount_cents = ?, description = ?, occurred_on = ?, tags = ?,
			sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		m.AccountID, nullID(m.DestinationID), nullID(m.CategoryID), m.Direction,
		m.Amount.Cents, m.Description, m.OccurredOn.String(), joinTags(m.Tags), m.ID)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update movement rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("movement %d: %w", m.ID, core.ErrNotFound)
	}
	return nil
}

// SoftDeleteMovement marks a movement deleted. It reports ErrNotFound when
// the row is absent or already deleted.
func (q *Queries) SoftDeleteMovement(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE movements SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete movement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete movement rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("movement %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListMovementsByMonth returns the owner's non-deleted movements dated in
// the given year and month, oldest first.
func (q *Queries) ListMovementsByMonth(ctx context.Context, ownerID int64, year, month int) ([]core.Movement, error) {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+movementColumns+` FROM movements
		WHERE owner_id = ? AND occurred_on LIKE ? AND deleted_at IS NULL
		ORDER BY occurred_on, id`, ownerID, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var movements []core.Movement
	for rows.Next() {
		m, err := scanMovementRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetPendingSyncMovements returns movements awaiting export, oldest first.
func (q *Queries) GetPendingSyncMovements(ctx context.Context, limit int) ([]PendingSyncMovement, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, created_at FROM movements
		WHERE sync_status IN ('pending', 'error') AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync movements: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncMovement
	for rows.Next() {
		var p PendingSyncMovement
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending movement: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkMovementSynced records a successful export.
func (q *Queries) MarkMovementSynced(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `
		UPDATE movements SET sync_status = 'synced', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark movement synced: %w", err)
	}
	return nil
}

// MarkMovementSyncError records a failed export so the backup scan can
// retry it later.
func (q *Queries) MarkMovementSyncError(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `
		UPDATE movements SET sync_status = 'error', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark movement sync error: %w", err)
	}
	return nil
}
