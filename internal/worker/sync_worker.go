// Package worker mirrors committed movements to the configured export
// target. The AMQP events are the fast path; a periodic scan over rows
// still marked pending recovers anything lost between commit and publish.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/sheets"
	"registro/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.MovementWriter
	deleter   sheets.MovementDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.MovementWriter, deleter sheets.MovementDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one movement sync event from AMQP. It always
// re-reads the movement from storage, so duplicate or out-of-order
// deliveries converge on the current row state.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg amqp.MovementSyncMessage) error {
	movement, err := w.storage.Queries().GetMovement(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get movement from storage: %w", err)
	}

	if movement.Deleted {
		// Deleted between publish and consume; the delete event handles it.
		slog.InfoContext(ctx, "Skipping sync of deleted movement", "id", msg.ID)
		return nil
	}

	return w.exportMovement(ctx, movement)
}

// HandleDeleteMessage removes a soft-deleted movement from the export
// target.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg amqp.MovementDeleteMessage) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No deleter configured, skipping export removal", "id", msg.ID)
		return nil
	}

	if err := w.deleter.Delete(ctx, msg.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Never exported in the first place; nothing to remove.
			return nil
		}
		return fmt.Errorf("delete exported movement: %w", err)
	}

	slog.InfoContext(ctx, "Removed movement from export target", "id", msg.ID)
	return nil
}

// ProcessPendingMovements exports any movements still marked pending.
// This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingMovements(ctx context.Context) error {
	pending, err := w.storage.Queries().GetPendingSyncMovements(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending movements: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending movements", "count", len(pending))

	for _, p := range pending {
		movement, err := w.storage.Queries().GetMovement(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get pending movement", "id", p.ID, "error", err)
			continue
		}
		if movement.Deleted {
			continue
		}
		if err := w.exportMovement(ctx, movement); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending movement", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.Queries().GetPendingSyncMovements(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending movements for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending movements found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending movements on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		movement, err := w.storage.Queries().GetMovement(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get movement for startup sync",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		if movement.Deleted {
			continue
		}
		if err := w.exportMovement(ctx, movement); err != nil {
			slog.ErrorContext(ctx, "Failed to export movement during startup",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"failed", failed)

	return nil
}

func (w *SyncWorker) exportMovement(ctx context.Context, m core.Movement) error {
	ref, err := w.writer.Append(ctx, m)
	if err != nil {
		if markErr := w.storage.Queries().MarkMovementSyncError(ctx, m.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", m.ID, "error", markErr)
		}
		return fmt.Errorf("append to export target: %w", err)
	}

	if err := w.storage.Queries().MarkMovementSynced(ctx, m.ID); err != nil {
		// The export itself worked; the pending scan will retry the mark.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", m.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported movement",
		"id", m.ID,
		"row_ref", ref,
		"amount_cents", m.Amount.Cents)

	return nil
}
