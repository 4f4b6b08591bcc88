package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registro/internal/core"
)

const ruleColumns = `id, owner_id, account_id, destination_id, category_id, direction,
	amount_cents, description, frequency, interval_count, start_date, end_date,
	last_run, next_due, active, deleted_at IS NOT NULL`

func scanRuleRow(scan func(dest ...any) error) (core.RecurringRule, error) {
	var r core.RecurringRule
	var destination, category sql.NullInt64
	var start, next string
	var end, lastRun sql.NullString
	err := scan(&r.ID, &r.OwnerID, &r.AccountID, &destination, &category, &r.Direction,
		&r.Amount.Cents, &r.Description, &r.Cadence.Frequency, &r.Cadence.Interval,
		&start, &end, &lastRun, &next, &r.Active, &r.Deleted)
	if err != nil {
		return core.RecurringRule{}, err
	}
	r.DestinationID = idFromNull(destination)
	r.CategoryID = idFromNull(category)
	if r.StartDate, err = core.ParseDate(start); err != nil {
		return core.RecurringRule{}, err
	}
	if r.NextDue, err = core.ParseDate(next); err != nil {
		return core.RecurringRule{}, err
	}
	if r.EndDate, err = dateFromNull(end); err != nil {
		return core.RecurringRule{}, err
	}
	if r.LastRun, err = dateFromNull(lastRun); err != nil {
		return core.RecurringRule{}, err
	}
	return r, nil
}

// InsertRule persists a recurring rule and returns the stored row.
func (q *Queries) InsertRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO recurring_rules (owner_id, account_id, destination_id, category_id, direction,
			amount_cents, description, frequency, interval_count, start_date, end_date,
			last_run, next_due, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+ruleColumns,
		r.OwnerID, r.AccountID, nullID(r.DestinationID), nullID(r.CategoryID), r.Direction,
		r.Amount.Cents, r.Description, r.Cadence.Frequency, r.Cadence.Interval,
		r.StartDate.String(), nullDate(r.EndDate), nullDate(r.LastRun), r.NextDue.String(), r.Active)
	stored, err := scanRuleRow(row.Scan)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return stored, nil
}

// GetRule fetches a rule by id, soft-deleted rows included.
func (q *Queries) GetRule(ctx context.Context, id int64) (core.RecurringRule, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	stored, err := scanRuleRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule: %w", err)
	}
	return stored, nil
}

// ListRules returns the owner's non-deleted rules.
func (q *Queries) ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM recurring_rules
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		r, err := scanRuleRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListDueRules snapshots the rules due on or before the given day. The
// scheduler re-reads each rule inside its own transaction before
// materializing, so this list is only a candidate set.
func (q *Queries) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM recurring_rules
		WHERE active = 1 AND deleted_at IS NULL AND next_due <= ?
			AND (end_date IS NULL OR next_due <= end_date)
		ORDER BY id`, today.String())
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		r, err := scanRuleRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan due rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateRule overwrites the editable template and schedule columns,
// including the engine-owned cursor fields.
func (q *Queries) UpdateRule(ctx context.Context, r core.RecurringRule) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET account_id = ?, destination_id = ?, category_id = ?, direction = ?,
			amount_cents = ?, description = ?, frequency = ?, interval_count = ?,
			start_date = ?, end_date = ?, last_run = ?, next_due = ?, active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		r.AccountID, nullID(r.DestinationID), nullID(r.CategoryID), r.Direction,
		r.Amount.Cents, r.Description, r.Cadence.Frequency, r.Cadence.Interval,
		r.StartDate.String(), nullDate(r.EndDate), nullDate(r.LastRun), r.NextDue.String(),
		r.Active, r.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", r.ID, core.ErrNotFound)
	}
	return nil
}

// AdvanceRuleCursor moves a rule's cursor past a materialized occurrence.
// It only succeeds when next_due still matches the occurrence just
// materialized, so two racing apply runs cannot both advance the same rule.
func (q *Queries) AdvanceRuleCursor(ctx context.Context, id int64, lastRun, nextDue core.Date, active bool) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET last_run = ?, next_due = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND next_due = ? AND active = 1 AND deleted_at IS NULL`,
		lastRun.String(), nextDue.String(), active, id, lastRun.String())
	if err != nil {
		return fmt.Errorf("advance rule cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rule cursor rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d no longer due: %w", id, core.ErrNotFound)
	}
	return nil
}

// SoftDeleteRule marks a rule deleted.
func (q *Queries) SoftDeleteRule(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_rules SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete rule rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, core.ErrNotFound)
	}
	return nil
}
