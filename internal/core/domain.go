package core

import (
	"fmt"
	"strings"
)

const (
	Checking   AccountKind = "checking"
	Savings    AccountKind = "savings"
	Credit     AccountKind = "credit"
	Cash       AccountKind = "cash"
	Investment AccountKind = "investment"
)

const (
	Income   Direction = "income"
	Expense  Direction = "expense"
	Transfer Direction = "transfer"
)

type (
	AccountKind string

	// Direction classifies how a movement touches account balances.
	Direction string

	// Account is a balance-carrying container of movements. The invariant
	// maintained by the ledger engine is:
	//
	//	Balance == InitialBalance + sum of signed effects of all
	//	non-deleted movements referencing this account
	Account struct {
		ID             int64
		OwnerID        int64
		Name           string
		Kind           AccountKind
		Currency       string
		InitialBalance Money
		Balance        Money
		Deleted        bool
	}

	// Category labels non-transfer movements. Direction must agree with
	// the movement's direction; a parent category, when set, shares the
	// same direction.
	Category struct {
		ID        int64
		OwnerID   int64
		Name      string
		Direction Direction
		ParentID  *int64
		System    bool
		Deleted   bool
	}

	// Movement is a recorded change of money: income, expense, or a
	// transfer between two accounts of the same owner.
	Movement struct {
		ID            int64
		OwnerID       int64
		AccountID     int64
		DestinationID *int64 // set iff Direction == Transfer
		CategoryID    *int64 // never set on transfers
		Direction     Direction
		Amount        Money
		Description   string
		OccurredOn    Date
		Tags          []string
		RuleID        *int64 // set when materialized from a recurring rule
		Deleted       bool
	}

	// BalanceDelta is the signed effect a movement has on one account.
	BalanceDelta struct {
		AccountID int64
		Cents     int64
	}
)

func (k AccountKind) Validate() error {
	switch k {
	case Checking, Savings, Credit, Cash, Investment:
		return nil
	default:
		return fmt.Errorf("%w: unknown account kind %q", ErrInvalidState, string(k))
	}
}

func (d Direction) Validate() error {
	switch d {
	case Income, Expense, Transfer:
		return nil
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidState, string(d))
	}
}

func (a Account) Validate() error {
	if err := a.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account name required", ErrInvalidState)
	}
	if len(a.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidState)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name required", ErrInvalidState)
	}
	switch c.Direction {
	case Income, Expense:
		return nil
	case Transfer:
		return fmt.Errorf("%w: categories cannot have transfer direction", ErrInvalidState)
	default:
		return c.Direction.Validate()
	}
}

// Validate checks the structural invariants of a movement. Referential
// checks (the accounts and category actually existing and belonging to the
// owner) happen in the service layer against storage.
func (m Movement) Validate() error {
	if err := m.Direction.Validate(); err != nil {
		return err
	}
	if err := m.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(m.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(m.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidState)
	}
	if err := m.OccurredOn.Validate(); err != nil {
		return err
	}
	switch m.Direction {
	case Transfer:
		if m.DestinationID == nil {
			return fmt.Errorf("%w: transfer requires a destination account", ErrInvalidState)
		}
		if *m.DestinationID == m.AccountID {
			return fmt.Errorf("%w: transfer destination must differ from source", ErrInvalidState)
		}
		if m.CategoryID != nil {
			return fmt.Errorf("%w: transfers carry no category", ErrInvalidState)
		}
	default:
		if m.DestinationID != nil {
			return fmt.Errorf("%w: destination account only valid on transfers", ErrInvalidState)
		}
	}
	return nil
}

// Deltas returns the signed balance effects of the movement:
//
//	income    +A on source
//	expense   -A on source
//	transfer  -A on source, +A on destination
func (m Movement) Deltas() []BalanceDelta {
	switch m.Direction {
	case Income:
		return []BalanceDelta{{AccountID: m.AccountID, Cents: m.Amount.Cents}}
	case Expense:
		return []BalanceDelta{{AccountID: m.AccountID, Cents: -m.Amount.Cents}}
	case Transfer:
		return []BalanceDelta{
			{AccountID: m.AccountID, Cents: -m.Amount.Cents},
			{AccountID: *m.DestinationID, Cents: m.Amount.Cents},
		}
	default:
		return nil
	}
}

// InverseDeltas returns the deltas that exactly undo the movement's
// recorded balance effect.
func (m Movement) InverseDeltas() []BalanceDelta {
	deltas := m.Deltas()
	inverted := make([]BalanceDelta, len(deltas))
	for i, d := range deltas {
		inverted[i] = BalanceDelta{AccountID: d.AccountID, Cents: -d.Cents}
	}
	return inverted
}
