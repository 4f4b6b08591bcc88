package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registro/internal/core"
)

const categoryColumns = `id, owner_id, name, direction, parent_id, is_system, deleted_at IS NOT NULL`

// CreateCategory inserts a category and returns the stored row.
func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO categories (owner_id, name, direction, parent_id, is_system)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+categoryColumns,
		c.OwnerID, c.Name, c.Direction, nullID(c.ParentID), c.System)
	return scanCategory(row)
}

// GetCategory fetches a category by id, soft-deleted rows included.
func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

// ListCategories returns the owner's non-deleted categories.
func (q *Queries) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY direction, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Direction, &parent, &c.System, &c.Deleted); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentID = idFromNull(parent)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanCategory(row *sql.Row) (core.Category, error) {
	var c core.Category
	var parent sql.NullInt64
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Direction, &parent, &c.System, &c.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.ParentID = idFromNull(parent)
	return c, nil
}
