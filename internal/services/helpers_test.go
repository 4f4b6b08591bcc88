package services

import (
	"context"
	"path/filepath"
	"testing"

	"registro/internal/core"
	"registro/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateAccount(t *testing.T, repo *storage.SQLiteRepository, ownerID, initialCents int64) core.Account {
	t.Helper()
	a, err := repo.Queries().CreateAccount(context.Background(), core.Account{
		OwnerID:        ownerID,
		Name:           "Test account",
		Kind:           core.Checking,
		Currency:       "EUR",
		InitialBalance: core.Money{Cents: initialCents},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func mustCreateCategory(t *testing.T, repo *storage.SQLiteRepository, ownerID int64, direction core.Direction) core.Category {
	t.Helper()
	c, err := repo.Queries().CreateCategory(context.Background(), core.Category{
		OwnerID:   ownerID,
		Name:      "Test category",
		Direction: direction,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func balanceOf(t *testing.T, repo *storage.SQLiteRepository, accountID int64) int64 {
	t.Helper()
	a, err := repo.Queries().GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account %d: %v", accountID, err)
	}
	return a.Balance.Cents
}
