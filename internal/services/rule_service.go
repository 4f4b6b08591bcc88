package services

import (
	"context"
	"fmt"

	"registro/internal/core"
	"registro/internal/storage"
)

// RuleService manages recurring rule templates. The cursor fields
// (last_run, next_due, active) are derived: user edits to the schedule
// recompute them idempotently from the last materialized occurrence.
type RuleService struct {
	repo *storage.SQLiteRepository
}

func NewRuleService(repo *storage.SQLiteRepository) *RuleService {
	return &RuleService{repo: repo}
}

// CreateRule validates the template against the owner's accounts and
// categories and stores it with its cursor at the start date.
func (s *RuleService) CreateRule(ctx context.Context, ownerID int64, draft core.RecurringRule) (core.RecurringRule, error) {
	var created core.RecurringRule
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		draft.ID = 0
		draft.OwnerID = ownerID
		draft.LastRun = nil
		draft.RecomputeCursor()

		if err := draft.Validate(); err != nil {
			return err
		}
		if err := validateRuleRefs(ctx, q, draft); err != nil {
			return err
		}

		stored, err := q.InsertRule(ctx, draft)
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		return core.RecurringRule{}, err
	}
	return created, nil
}

// UpdateRule merges the requested changes, re-validates, and recomputes the
// cursor. Extending the end date of a terminated rule re-enables it; the
// cursor lands where the cadence says the next occurrence falls, based on
// what was last materialized.
func (s *RuleService) UpdateRule(ctx context.Context, ownerID, id int64, changes core.RuleUpdate) (core.RecurringRule, error) {
	var updated core.RecurringRule
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		stored, err := s.getOwnedRule(ctx, q, ownerID, id)
		if err != nil {
			return err
		}

		merged := changes.ApplyTo(stored)
		merged.RecomputeCursor()

		if err := merged.Validate(); err != nil {
			return err
		}
		if err := validateRuleRefs(ctx, q, merged); err != nil {
			return err
		}

		if err := q.UpdateRule(ctx, merged); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		return core.RecurringRule{}, err
	}
	return updated, nil
}

// DeleteRule soft-deletes a rule. Movements it already materialized keep
// their balance effect.
func (s *RuleService) DeleteRule(ctx context.Context, ownerID, id int64) error {
	return s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := s.getOwnedRule(ctx, q, ownerID, id); err != nil {
			return err
		}
		return q.SoftDeleteRule(ctx, id)
	})
}

// ListRules returns the owner's rules.
func (s *RuleService) ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	return s.repo.Queries().ListRules(ctx, ownerID)
}

func (s *RuleService) getOwnedRule(ctx context.Context, q *storage.Queries, ownerID, id int64) (core.RecurringRule, error) {
	stored, err := q.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if stored.Deleted || stored.OwnerID != ownerID {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", id, core.ErrNotFound)
	}
	return stored, nil
}

// validateRuleRefs checks the rule's account and category references the
// same way movement creation does.
func validateRuleRefs(ctx context.Context, q *storage.Queries, r core.RecurringRule) error {
	if err := checkAccount(ctx, q, r.OwnerID, r.AccountID); err != nil {
		return err
	}
	if r.DestinationID != nil {
		if err := checkAccount(ctx, q, r.OwnerID, *r.DestinationID); err != nil {
			return err
		}
	}
	if r.CategoryID != nil {
		if err := checkCategory(ctx, q, r.OwnerID, *r.CategoryID, r.Direction); err != nil {
			return err
		}
	}
	return nil
}
