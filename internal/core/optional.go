package core

import "encoding/json"

// Optional carries a field that may be absent from a partial update. It
// distinguishes "not provided" (leave as is) from "provided" (set to the
// value, including nil for nullable references), so merge logic in update
// operations is total over every field combination.
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps a provided value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// IsSet reports whether the field was provided.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Get returns the value and whether it was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// Or returns the provided value, or fallback when absent.
func (o Optional[T]) Or(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

// UnmarshalJSON marks the field as provided. Absent JSON fields never reach
// UnmarshalJSON, so the zero Optional means "not provided"; an explicit
// null on a pointer-typed Optional means "clear".
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.set = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// MovementUpdate is a partial edit of a movement. Every editable attribute
// is optional; ApplyTo merges the provided ones onto a stored movement.
type MovementUpdate struct {
	AccountID     Optional[int64]     `json:"account_id"`
	DestinationID Optional[*int64]    `json:"destination_id"`
	CategoryID    Optional[*int64]    `json:"category_id"`
	Direction     Optional[Direction] `json:"direction"`
	AmountCents   Optional[int64]     `json:"amount_cents"`
	Description   Optional[string]    `json:"description"`
	OccurredOn    Optional[Date]      `json:"occurred_on"`
	Tags          Optional[[]string]  `json:"tags"`
}

// ApplyTo merges the update onto a stored movement and returns the result.
// Identity fields (ID, OwnerID, RuleID) never change through an update.
func (u MovementUpdate) ApplyTo(m Movement) Movement {
	m.AccountID = u.AccountID.Or(m.AccountID)
	m.DestinationID = u.DestinationID.Or(m.DestinationID)
	m.CategoryID = u.CategoryID.Or(m.CategoryID)
	m.Direction = u.Direction.Or(m.Direction)
	if cents, ok := u.AmountCents.Get(); ok {
		m.Amount = Money{Cents: cents}
	}
	m.Description = u.Description.Or(m.Description)
	m.OccurredOn = u.OccurredOn.Or(m.OccurredOn)
	m.Tags = u.Tags.Or(m.Tags)
	return m
}

// RuleUpdate is a partial edit of a recurring rule. Schedule edits trigger
// an idempotent cursor recomputation in the service layer.
type RuleUpdate struct {
	AccountID     Optional[int64]     `json:"account_id"`
	DestinationID Optional[*int64]    `json:"destination_id"`
	CategoryID    Optional[*int64]    `json:"category_id"`
	Direction     Optional[Direction] `json:"direction"`
	AmountCents   Optional[int64]     `json:"amount_cents"`
	Description   Optional[string]    `json:"description"`
	Cadence       Optional[Cadence]   `json:"cadence"`
	StartDate     Optional[Date]      `json:"start_date"`
	EndDate       Optional[*Date]     `json:"end_date"`
}

// ApplyTo merges the update onto a stored rule. The cursor fields (LastRun,
// NextDue, Active) are engine-owned and recomputed afterwards.
func (u RuleUpdate) ApplyTo(r RecurringRule) RecurringRule {
	r.AccountID = u.AccountID.Or(r.AccountID)
	r.DestinationID = u.DestinationID.Or(r.DestinationID)
	r.CategoryID = u.CategoryID.Or(r.CategoryID)
	r.Direction = u.Direction.Or(r.Direction)
	if cents, ok := u.AmountCents.Get(); ok {
		r.Amount = Money{Cents: cents}
	}
	r.Description = u.Description.Or(r.Description)
	r.Cadence = u.Cadence.Or(r.Cadence)
	r.StartDate = u.StartDate.Or(r.StartDate)
	r.EndDate = u.EndDate.Or(r.EndDate)
	return r
}
