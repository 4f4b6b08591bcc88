package core

import (
	"fmt"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

type (
	Frequency string

	// Cadence is a frequency plus a positive interval count, e.g.
	// {Monthly, 2} fires every second month.
	Cadence struct {
		Frequency Frequency `json:"frequency"`
		Interval  int       `json:"interval"`
	}

	// RecurringRule is a movement template that materializes on a cadence.
	// NextDue is always the cadence function applied to the previously
	// materialized occurrence (LastRun), or StartDate if none materialized
	// yet. Once NextDue would pass EndDate the rule deactivates itself.
	RecurringRule struct {
		ID            int64
		OwnerID       int64
		AccountID     int64
		DestinationID *int64
		CategoryID    *int64
		Direction     Direction
		Amount        Money
		Description   string
		Cadence       Cadence
		StartDate     Date
		EndDate       *Date
		LastRun       *Date
		NextDue       Date
		Active        bool
		Deleted       bool
	}
)

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidState, string(f))
	}
}

func (c Cadence) Validate() error {
	if err := c.Frequency.Validate(); err != nil {
		return err
	}
	if c.Interval < 1 {
		return fmt.Errorf("%w: cadence interval must be at least 1", ErrInvalidState)
	}
	return nil
}

// NextOccurrence advances anchor by one cadence step. It is pure and
// deterministic, so cursors can be recomputed idempotently after edits.
//
// Monthly, quarterly, and yearly steps preserve the anchor's day of month
// when the target month is long enough; shorter target months clamp to
// their last day (Jan 31 + 1 month = Feb 28, or Feb 29 in a leap year).
func NextOccurrence(anchor Date, c Cadence) Date {
	switch c.Frequency {
	case Daily:
		return Date{Time: anchor.AddDate(0, 0, c.Interval)}
	case Weekly:
		return Date{Time: anchor.AddDate(0, 0, 7*c.Interval)}
	case Monthly:
		return addMonthsClamped(anchor, c.Interval)
	case Quarterly:
		return addMonthsClamped(anchor, 3*c.Interval)
	case Yearly:
		return addMonthsClamped(anchor, 12*c.Interval)
	default:
		return anchor
	}
}

// addMonthsClamped adds months to a date, clamping the day of month to the
// target month's length. time.AddDate would normalize Jan 31 + 1 month to
// Mar 2/3, which is wrong for billing-style schedules.
func addMonthsClamped(d Date, months int) Date {
	year, month, day := d.Date()
	total := int(month) - 1 + months
	year += total / 12
	m := total % 12
	if m < 0 {
		m += 12
		year--
	}
	targetMonth := time.Month(m + 1)
	if last := lastDayOfMonth(year, targetMonth); day > last {
		day = last
	}
	return NewDate(year, int(targetMonth), day)
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// movementDraft converts the rule template into a movement draft dated at
// the given occurrence.
func (r RecurringRule) movementDraft(occurrence Date) Movement {
	ruleID := r.ID
	return Movement{
		OwnerID:       r.OwnerID,
		AccountID:     r.AccountID,
		DestinationID: r.DestinationID,
		CategoryID:    r.CategoryID,
		Direction:     r.Direction,
		Amount:        r.Amount,
		Description:   r.Description,
		OccurredOn:    occurrence,
		RuleID:        &ruleID,
	}
}

// MaterializeAt returns the movement this rule produces for an occurrence.
func (r RecurringRule) MaterializeAt(occurrence Date) Movement {
	return r.movementDraft(occurrence)
}

// IsDueAt reports whether the rule should materialize on the given day:
// it is active, its cursor has arrived, and the cursor has not passed the
// end date.
func (r RecurringRule) IsDueAt(today Date) bool {
	if !r.Active || r.Deleted {
		return false
	}
	if !r.NextDue.OnOrBefore(today) {
		return false
	}
	if r.EndDate != nil && r.NextDue.After(*r.EndDate) {
		return false
	}
	return true
}

// Validate checks the rule template. The template must form a valid
// movement, and the schedule must be internally consistent.
func (r RecurringRule) Validate() error {
	if err := r.Cadence.Validate(); err != nil {
		return err
	}
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if r.EndDate != nil {
		if err := r.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if r.EndDate.Before(r.StartDate) {
			return fmt.Errorf("%w: end date must not precede start date", ErrInvalidState)
		}
	}
	// The template itself must produce a valid movement.
	draft := r.movementDraft(r.StartDate)
	if err := draft.Validate(); err != nil {
		return err
	}
	return nil
}

// RecomputeCursor derives NextDue and Active from the rule's schedule
// fields. NextDue is the cadence applied to the last materialized
// occurrence, or the start date when nothing materialized yet. The rule is
// active iff the cursor has not passed the end date, so extending the end
// date re-enables a terminated rule.
func (r *RecurringRule) RecomputeCursor() {
	if r.LastRun != nil {
		r.NextDue = NextOccurrence(*r.LastRun, r.Cadence)
	} else {
		r.NextDue = r.StartDate
	}
	r.Active = r.EndDate == nil || !r.NextDue.After(*r.EndDate)
}
