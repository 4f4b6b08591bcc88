package services

import (
	"context"
	"fmt"
	"log/slog"

	"registro/internal/core"
	"registro/internal/storage"
)

// EventPublisher is the slice of the AMQP client the ledger needs. Nil is
// a valid publisher: events are skipped and mutations stay local.
type EventPublisher interface {
	PublishMovementSync(ctx context.Context, id int64) error
	PublishMovementDelete(ctx context.Context, id int64) error
}

// LedgerService owns the balance invariant: an account's balance always
// equals its initial balance plus the net effect of all non-deleted
// movements touching it. Every mutation applies its balance deltas and the
// movement row inside one transaction.
type LedgerService struct {
	repo   *storage.SQLiteRepository
	events EventPublisher
}

func NewLedgerService(repo *storage.SQLiteRepository, events EventPublisher) *LedgerService {
	return &LedgerService{
		repo:   repo,
		events: events,
	}
}

// CreateMovement validates the draft against the owner's accounts and
// categories, persists it, and applies its balance deltas atomically.
func (s *LedgerService) CreateMovement(ctx context.Context, ownerID int64, draft core.Movement) (core.Movement, error) {
	var created core.Movement
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var txErr error
		created, txErr = createMovementTx(ctx, q, ownerID, draft)
		return txErr
	})
	if err != nil {
		return core.Movement{}, err
	}

	s.publishSync(ctx, created.ID)
	return created, nil
}

// createMovementTx is the transactional core of create, shared with the
// recurring processor so rule materialization and cursor advancement can
// live in one atomic unit.
func createMovementTx(ctx context.Context, q *storage.Queries, ownerID int64, draft core.Movement) (core.Movement, error) {
	draft.ID = 0
	draft.OwnerID = ownerID
	if err := validateMovementRefs(ctx, q, draft); err != nil {
		return core.Movement{}, err
	}

	stored, err := q.InsertMovement(ctx, draft)
	if err != nil {
		return core.Movement{}, err
	}

	for _, delta := range stored.Deltas() {
		if err := q.ApplyBalanceDelta(ctx, delta); err != nil {
			return core.Movement{}, err
		}
	}
	return stored, nil
}

// UpdateMovement leaves the ledger as if the original movement never
// existed and the edited one had been created directly: it reverses the
// stored deltas, merges the requested changes, re-validates exactly as
// create does, and applies the new deltas — all in one transaction.
func (s *LedgerService) UpdateMovement(ctx context.Context, ownerID, id int64, changes core.MovementUpdate) (core.Movement, error) {
	var updated core.Movement
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		stored, err := s.getOwnedMovement(ctx, q, ownerID, id)
		if err != nil {
			return err
		}

		// Undo the stored movement's recorded effect before anything else;
		// a failure further down rolls this back with the rest.
		for _, delta := range stored.InverseDeltas() {
			if err := q.ApplyBalanceDelta(ctx, delta); err != nil {
				return err
			}
		}

		merged := changes.ApplyTo(stored)
		if err := validateMovementRefs(ctx, q, merged); err != nil {
			return err
		}

		for _, delta := range merged.Deltas() {
			if err := q.ApplyBalanceDelta(ctx, delta); err != nil {
				return err
			}
		}

		if err := q.UpdateMovement(ctx, merged); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		return core.Movement{}, err
	}

	s.publishSync(ctx, updated.ID)
	return updated, nil
}

// DeleteMovement reverses the stored movement's recorded deltas and marks
// it deleted, atomically.
func (s *LedgerService) DeleteMovement(ctx context.Context, ownerID, id int64) error {
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		stored, err := s.getOwnedMovement(ctx, q, ownerID, id)
		if err != nil {
			return err
		}

		for _, delta := range stored.InverseDeltas() {
			if err := q.ApplyBalanceDelta(ctx, delta); err != nil {
				return err
			}
		}

		return q.SoftDeleteMovement(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publishDelete(ctx, id)
	return nil
}

// ListMovements returns the owner's movements for a month.
func (s *LedgerService) ListMovements(ctx context.Context, ownerID int64, year, month int) ([]core.Movement, error) {
	return s.repo.Queries().ListMovementsByMonth(ctx, ownerID, year, month)
}

// getOwnedMovement loads a movement for mutation. Absent, foreign, and
// already-deleted movements all surface as ErrNotFound so callers cannot
// probe other owners' data.
func (s *LedgerService) getOwnedMovement(ctx context.Context, q *storage.Queries, ownerID, id int64) (core.Movement, error) {
	stored, err := q.GetMovement(ctx, id)
	if err != nil {
		return core.Movement{}, err
	}
	if stored.Deleted || stored.OwnerID != ownerID {
		return core.Movement{}, fmt.Errorf("movement %d: %w", id, core.ErrNotFound)
	}
	return stored, nil
}

// publishSync emits a sync event after a committed mutation. Event
// delivery is best effort: the ledger write already succeeded, and the
// worker's pending scan picks up anything the queue misses.
func (s *LedgerService) publishSync(ctx context.Context, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMovementSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish movement sync event",
			"id", id, "error", err)
	}
}

func (s *LedgerService) publishDelete(ctx context.Context, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMovementDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish movement delete event",
			"id", id, "error", err)
	}
}
