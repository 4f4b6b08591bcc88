// Package services provides business logic and orchestration: the ledger
// mutation engine, recurring rule management, and the scheduler that
// materializes due rules into movements.
package services

import (
	"context"
	"fmt"

	"registro/internal/core"
	"registro/internal/storage"
)

// checkAccount verifies that a referenced account exists, is not deleted,
// and belongs to the owner.
func checkAccount(ctx context.Context, q *storage.Queries, ownerID, accountID int64) error {
	account, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Deleted {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	if account.OwnerID != ownerID {
		return fmt.Errorf("account %d: %w", accountID, core.ErrOwnershipViolation)
	}
	return nil
}

// checkCategory verifies a referenced category exists, is owned by the
// caller, and that its direction agrees with the movement direction.
func checkCategory(ctx context.Context, q *storage.Queries, ownerID, categoryID int64, direction core.Direction) error {
	category, err := q.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if category.Deleted {
		return fmt.Errorf("category %d: %w", categoryID, core.ErrNotFound)
	}
	if category.OwnerID != ownerID {
		return fmt.Errorf("category %d: %w", categoryID, core.ErrOwnershipViolation)
	}
	if category.Direction != direction {
		return fmt.Errorf("category %d is %s, movement is %s: %w",
			categoryID, category.Direction, direction, core.ErrCategoryMismatch)
	}
	return nil
}

// validateMovementRefs runs the full reference validation a create (or the
// re-validation step of an update) requires: structural checks first, then
// account existence/ownership, then category agreement.
func validateMovementRefs(ctx context.Context, q *storage.Queries, m core.Movement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := checkAccount(ctx, q, m.OwnerID, m.AccountID); err != nil {
		return err
	}
	if m.DestinationID != nil {
		if err := checkAccount(ctx, q, m.OwnerID, *m.DestinationID); err != nil {
			return err
		}
	}
	if m.CategoryID != nil {
		if err := checkCategory(ctx, q, m.OwnerID, *m.CategoryID, m.Direction); err != nil {
			return err
		}
	}
	return nil
}
