package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/services"
	"registro/internal/sheets/memory"
	"registro/internal/storage"
)

func newTestSetup(t *testing.T) (*storage.SQLiteRepository, *services.LedgerService, *memory.Store, *SyncWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := memory.New()
	return repo, services.NewLedgerService(repo, nil), store, NewSyncWorker(repo, store, store, 10)
}

func createMovement(t *testing.T, repo *storage.SQLiteRepository, ledger *services.LedgerService) core.Movement {
	t.Helper()
	ctx := context.Background()
	account, err := repo.Queries().CreateAccount(ctx, core.Account{
		OwnerID:        1,
		Name:           "Main",
		Kind:           core.Checking,
		Currency:       "EUR",
		InitialBalance: core.Money{Cents: 10_000},
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := ledger.CreateMovement(ctx, 1, core.Movement{
		AccountID:   account.ID,
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 500},
		Description: "Lunch",
		OccurredOn:  core.NewDate(2024, 1, 10),
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestHandleSyncMessageExportsAndMarks(t *testing.T) {
	repo, ledger, store, w := newTestSetup(t)
	ctx := context.Background()
	m := createMovement(t, repo, ledger)

	if err := w.HandleSyncMessage(ctx, amqp.MovementSyncMessage{ID: m.ID}); err != nil {
		t.Fatalf("handle sync: %v", err)
	}

	exported := store.Movements()
	if len(exported) != 1 || exported[0].ID != m.ID {
		t.Fatalf("exported %d movements, want the created one", len(exported))
	}

	// The row is no longer pending, so the backup scan has nothing to do.
	pending, err := repo.Queries().GetPendingSyncMovements(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d, want 0", len(pending))
	}
}

func TestHandleSyncMessageSkipsDeleted(t *testing.T) {
	repo, ledger, store, w := newTestSetup(t)
	ctx := context.Background()
	m := createMovement(t, repo, ledger)

	if err := ledger.DeleteMovement(ctx, 1, m.ID); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleSyncMessage(ctx, amqp.MovementSyncMessage{ID: m.ID}); err != nil {
		t.Fatalf("handle sync of deleted movement: %v", err)
	}
	if len(store.Movements()) != 0 {
		t.Error("deleted movement must not reach the export target")
	}
}

func TestHandleDeleteMessageToleratesUnexported(t *testing.T) {
	_, _, _, w := newTestSetup(t)
	if err := w.HandleDeleteMessage(context.Background(), amqp.MovementDeleteMessage{ID: 404}); err != nil {
		t.Fatalf("delete of never-exported movement should be a no-op, got %v", err)
	}
}

func TestProcessPendingMovementsBackupPath(t *testing.T) {
	repo, ledger, store, w := newTestSetup(t)
	ctx := context.Background()

	// Three movements created while the worker was down (no AMQP consume).
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, createMovement(t, repo, ledger).ID)
	}

	if err := w.ProcessPendingMovements(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	exported := store.Movements()
	if len(exported) != len(ids) {
		t.Fatalf("exported %d, want %d", len(exported), len(ids))
	}

	pending, err := repo.Queries().GetPendingSyncMovements(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after scan = %d, want 0", len(pending))
	}
}

type failingWriter struct{}

func (failingWriter) Append(context.Context, core.Movement) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportFailureMarksErrorAndRetries(t *testing.T) {
	repo, ledger, _, _ := newTestSetup(t)
	ctx := context.Background()
	m := createMovement(t, repo, ledger)

	broken := NewSyncWorker(repo, failingWriter{}, nil, 10)
	if err := broken.HandleSyncMessage(ctx, amqp.MovementSyncMessage{ID: m.ID}); err == nil {
		t.Fatal("expected export failure to propagate")
	}

	// Rows marked error stay visible to the pending scan for retry.
	pending, err := repo.Queries().GetPendingSyncMovements(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after failure = %d, want 1", len(pending))
	}

	// A healthy worker picks it up.
	store := memory.New()
	healthy := NewSyncWorker(repo, store, store, 10)
	if err := healthy.ProcessPendingMovements(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.Movements()) != 1 {
		t.Error("retried movement should reach the export target")
	}
}
