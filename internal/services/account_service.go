package services

import (
	"context"
	"fmt"

	"registro/internal/core"
	"registro/internal/storage"
)

// AccountService handles account and category bookkeeping around the
// ledger engine.
type AccountService struct {
	repo *storage.SQLiteRepository
}

func NewAccountService(repo *storage.SQLiteRepository) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) CreateAccount(ctx context.Context, ownerID int64, draft core.Account) (core.Account, error) {
	draft.ID = 0
	draft.OwnerID = ownerID
	if err := draft.Validate(); err != nil {
		return core.Account{}, err
	}
	return s.repo.Queries().CreateAccount(ctx, draft)
}

func (s *AccountService) GetAccount(ctx context.Context, ownerID, id int64) (core.Account, error) {
	account, err := s.repo.Queries().GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if account.Deleted || account.OwnerID != ownerID {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	return s.repo.Queries().ListAccounts(ctx, ownerID)
}

// CreateCategory validates the parent relationship: a child category must
// share its parent's direction and owner.
func (s *AccountService) CreateCategory(ctx context.Context, ownerID int64, draft core.Category) (core.Category, error) {
	draft.ID = 0
	draft.OwnerID = ownerID
	if err := draft.Validate(); err != nil {
		return core.Category{}, err
	}

	var created core.Category
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if draft.ParentID != nil {
			parent, err := q.GetCategory(ctx, *draft.ParentID)
			if err != nil {
				return err
			}
			if parent.Deleted {
				return fmt.Errorf("parent category %d: %w", *draft.ParentID, core.ErrNotFound)
			}
			if parent.OwnerID != ownerID {
				return fmt.Errorf("parent category %d: %w", *draft.ParentID, core.ErrOwnershipViolation)
			}
			if parent.Direction != draft.Direction {
				return fmt.Errorf("parent category %d is %s, child is %s: %w",
					*draft.ParentID, parent.Direction, draft.Direction, core.ErrCategoryMismatch)
			}
		}
		stored, err := q.CreateCategory(ctx, draft)
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return created, nil
}

func (s *AccountService) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	return s.repo.Queries().ListCategories(ctx, ownerID)
}
