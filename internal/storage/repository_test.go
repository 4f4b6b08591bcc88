package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"registro/internal/core"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository) core.Account {
	t.Helper()
	a, err := repo.Queries().CreateAccount(context.Background(), core.Account{
		OwnerID:        1,
		Name:           "Main",
		Kind:           core.Checking,
		Currency:       "EUR",
		InitialBalance: core.Money{Cents: 10_000},
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestMigrationsProduceWorkingSchema(t *testing.T) {
	repo := newRepo(t)
	// The schema is usable immediately after open.
	if _, err := repo.Queries().ListAccounts(context.Background(), 1); err != nil {
		t.Fatalf("schema not usable: %v", err)
	}
}

func TestMovementTagsRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	stored, err := repo.Queries().InsertMovement(ctx, core.Movement{
		OwnerID:     1,
		AccountID:   account.ID,
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 700},
		Description: "Groceries",
		OccurredOn:  core.NewDate(2024, 1, 10),
		Tags:        []string{"food", "weekly"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	back, err := repo.Queries().GetMovement(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(back.Tags) != 2 || back.Tags[0] != "food" || back.Tags[1] != "weekly" {
		t.Errorf("tags = %v", back.Tags)
	}

	// No tags stays no tags, not [""]
	bare, err := repo.Queries().InsertMovement(ctx, core.Movement{
		OwnerID:     1,
		AccountID:   account.ID,
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 100},
		Description: "Bare",
		OccurredOn:  core.NewDate(2024, 1, 11),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(bare.Tags) != 0 {
		t.Errorf("bare tags = %v, want none", bare.Tags)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	sentinel := errors.New("boom")
	err := repo.WithTx(ctx, func(q *Queries) error {
		if err := q.ApplyBalanceDelta(ctx, core.BalanceDelta{AccountID: account.ID, Cents: -5_000}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the handler error, got %v", err)
	}

	after, err := repo.Queries().GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Balance.Cents != 10_000 {
		t.Errorf("balance = %d after rollback, want 10000", after.Balance.Cents)
	}
}

func TestAdvanceRuleCursorIsCompareAndSwap(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	rule := core.RecurringRule{
		OwnerID:     1,
		AccountID:   account.ID,
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 999},
		Description: "Subscription",
		Cadence:     core.Cadence{Frequency: core.Monthly, Interval: 1},
		StartDate:   core.NewDate(2024, 1, 10),
	}
	rule.RecomputeCursor()
	stored, err := repo.Queries().InsertRule(ctx, rule)
	if err != nil {
		t.Fatal(err)
	}

	occurrence := core.NewDate(2024, 1, 10)
	next := core.NewDate(2024, 2, 10)
	if err := repo.Queries().AdvanceRuleCursor(ctx, stored.ID, occurrence, next, true); err != nil {
		t.Fatalf("first advance: %v", err)
	}

	// A second advance against the stale cursor loses the race.
	if err := repo.Queries().AdvanceRuleCursor(ctx, stored.ID, occurrence, next, true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("stale advance: got %v, want ErrNotFound", err)
	}

	back, err := repo.Queries().GetRule(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !back.NextDue.Equal(next.Time) {
		t.Errorf("next_due = %s, want %s", back.NextDue, next)
	}
	if back.LastRun == nil || !back.LastRun.Equal(occurrence.Time) {
		t.Errorf("last_run = %v, want %s", back.LastRun, occurrence)
	}
}

func TestApplyBalanceDeltaOnDeletedAccount(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	if err := repo.Queries().SoftDeleteAccount(ctx, account.ID); err != nil {
		t.Fatal(err)
	}
	err := repo.Queries().ApplyBalanceDelta(ctx, core.BalanceDelta{AccountID: account.ID, Cents: 100})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateMovementResetsSyncStatus(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	stored, err := repo.Queries().InsertMovement(ctx, core.Movement{
		OwnerID:     1,
		AccountID:   account.ID,
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 500},
		Description: "Lunch",
		OccurredOn:  core.NewDate(2024, 1, 10),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Queries().MarkMovementSynced(ctx, stored.ID); err != nil {
		t.Fatal(err)
	}
	pending, err := repo.Queries().GetPendingSyncMovements(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after mark = %d, want 0", len(pending))
	}

	// An edit invalidates the exported row, so it goes back to pending.
	stored.Description = "Dinner"
	if err := repo.Queries().UpdateMovement(ctx, stored); err != nil {
		t.Fatal(err)
	}
	pending, err = repo.Queries().GetPendingSyncMovements(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending after edit = %d, want 1", len(pending))
	}
}
