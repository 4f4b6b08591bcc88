package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"registro/internal/core"
	"registro/internal/storage"
)

// RecurringProcessor materializes due recurring rules into real movements
// through the ledger engine and advances each rule's cursor.
type RecurringProcessor struct {
	repo   *storage.SQLiteRepository
	ledger *LedgerService
}

func NewRecurringProcessor(repo *storage.SQLiteRepository, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{
		repo:   repo,
		ledger: ledger,
	}
}

// ApplyResult reports one scheduler pass: how many rules materialized, the
// movements they produced, and how many rules failed and were skipped.
type ApplyResult struct {
	Count     int
	Movements []core.Movement
	Skipped   int
	Failed    int
}

// ApplyDueRules materializes every rule whose cursor has arrived as of
// now. Each rule is processed in its own transaction: the rule is
// re-read, the movement is created dated at the rule's next_due, and the
// cursor advances — atomically, so two concurrent passes cannot
// double-materialize a rule. One misconfigured rule is logged and skipped
// without aborting the batch.
//
// A rule materializes at most one occurrence per pass; a rule that missed
// several periods stays due and catches up on subsequent passes.
func (p *RecurringProcessor) ApplyDueRules(ctx context.Context, now time.Time) (ApplyResult, error) {
	if p.repo == nil || p.ledger == nil {
		return ApplyResult{}, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)

	due, err := p.repo.Queries().ListDueRules(ctx, today)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("list due rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring rules",
		"due", len(due),
		"processing_date", today.String())

	var result ApplyResult
	for _, candidate := range due {
		movement, err := p.materializeRule(ctx, candidate.ID, today)
		if errors.Is(err, errRuleNoLongerDue) {
			// Another pass got here first; nothing to record.
			result.Skipped++
			continue
		}
		if err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "Failed to materialize rule",
				"rule_id", candidate.ID,
				"description", candidate.Description,
				"error", err)
			continue
		}

		result.Count++
		result.Movements = append(result.Movements, movement)
		p.ledger.publishSync(ctx, movement.ID)

		slog.InfoContext(ctx, "Materialized movement from recurring rule",
			"rule_id", candidate.ID,
			"movement_id", movement.ID,
			"occurred_on", movement.OccurredOn.String(),
			"amount_cents", movement.Amount.Cents)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"materialized", result.Count,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"total_due", len(due))

	return result, nil
}

// errRuleNoLongerDue distinguishes "someone else materialized it" from a
// real failure.
var errRuleNoLongerDue = errors.New("rule no longer due")

// materializeRule handles one rule in one transaction: re-check dueness,
// create the movement through the ledger, advance the cursor.
func (p *RecurringProcessor) materializeRule(ctx context.Context, ruleID int64, today core.Date) (core.Movement, error) {
	var created core.Movement

	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		// Re-read under the write lock: the snapshot may be stale if a
		// concurrent pass or user edit advanced the rule already.
		rule, err := q.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if !rule.IsDueAt(today) {
			return errRuleNoLongerDue
		}

		// The movement is dated at the occurrence (next_due), not at the
		// processing time.
		occurrence := rule.NextDue
		movement, err := createMovementTx(ctx, q, rule.OwnerID, rule.MaterializeAt(occurrence))
		if err != nil {
			return err
		}

		next := core.NextOccurrence(occurrence, rule.Cadence)
		active := rule.EndDate == nil || !next.After(*rule.EndDate)

		if err := q.AdvanceRuleCursor(ctx, rule.ID, occurrence, next, active); err != nil {
			return err
		}

		created = movement
		return nil
	})
	if err != nil {
		return core.Movement{}, err
	}
	return created, nil
}
