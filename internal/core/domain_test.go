package core

import (
	"errors"
	"testing"
)

func validMovement() Movement {
	return Movement{
		OwnerID:     1,
		AccountID:   1,
		Direction:   Expense,
		Amount:      Money{Cents: 1500},
		Description: "Groceries",
		OccurredOn:  NewDate(2024, 1, 15),
	}
}

func TestMovementValidate(t *testing.T) {
	dest := int64(2)
	same := int64(1)
	cat := int64(9)

	tests := []struct {
		name string
		mod  func(m Movement) Movement
		ok   bool
	}{
		{"valid expense", func(m Movement) Movement { return m }, true},
		{"valid income", func(m Movement) Movement { m.Direction = Income; return m }, true},
		{"valid transfer", func(m Movement) Movement {
			m.Direction = Transfer
			m.DestinationID = &dest
			return m
		}, true},
		{"zero amount", func(m Movement) Movement { m.Amount = Money{}; return m }, false},
		{"negative amount", func(m Movement) Movement { m.Amount = Money{Cents: -5}; return m }, false},
		{"empty description", func(m Movement) Movement { m.Description = "  "; return m }, false},
		{"unknown direction", func(m Movement) Movement { m.Direction = "refund"; return m }, false},
		{"transfer without destination", func(m Movement) Movement {
			m.Direction = Transfer
			return m
		}, false},
		{"transfer to same account", func(m Movement) Movement {
			m.Direction = Transfer
			m.DestinationID = &same
			return m
		}, false},
		{"transfer with category", func(m Movement) Movement {
			m.Direction = Transfer
			m.DestinationID = &dest
			m.CategoryID = &cat
			return m
		}, false},
		{"expense with destination", func(m Movement) Movement {
			m.DestinationID = &dest
			return m
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mod(validMovement()).Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMovementValidateErrorKinds(t *testing.T) {
	m := validMovement()
	m.Amount = Money{}
	if err := m.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount should yield ErrInvalidAmount, got %v", err)
	}

	m = validMovement()
	m.Description = ""
	if err := m.Validate(); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("empty description should yield ErrEmptyDescription, got %v", err)
	}

	m = validMovement()
	m.Direction = Transfer
	if err := m.Validate(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("bad transfer should yield ErrInvalidState, got %v", err)
	}
}

func TestMovementDeltas(t *testing.T) {
	dest := int64(2)

	tests := []struct {
		name string
		mov  Movement
		want []BalanceDelta
	}{
		{
			name: "income credits source",
			mov:  Movement{AccountID: 1, Direction: Income, Amount: Money{Cents: 500}},
			want: []BalanceDelta{{AccountID: 1, Cents: 500}},
		},
		{
			name: "expense debits source",
			mov:  Movement{AccountID: 1, Direction: Expense, Amount: Money{Cents: 500}},
			want: []BalanceDelta{{AccountID: 1, Cents: -500}},
		},
		{
			name: "transfer debits source and credits destination",
			mov:  Movement{AccountID: 1, DestinationID: &dest, Direction: Transfer, Amount: Money{Cents: 500}},
			want: []BalanceDelta{{AccountID: 1, Cents: -500}, {AccountID: 2, Cents: 500}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mov.Deltas()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d deltas, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("delta[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestInverseDeltasCancelOut(t *testing.T) {
	dest := int64(2)
	movements := []Movement{
		{AccountID: 1, Direction: Income, Amount: Money{Cents: 700}},
		{AccountID: 1, Direction: Expense, Amount: Money{Cents: 700}},
		{AccountID: 1, DestinationID: &dest, Direction: Transfer, Amount: Money{Cents: 700}},
	}

	for _, m := range movements {
		sums := map[int64]int64{}
		for _, d := range m.Deltas() {
			sums[d.AccountID] += d.Cents
		}
		for _, d := range m.InverseDeltas() {
			sums[d.AccountID] += d.Cents
		}
		for account, sum := range sums {
			if sum != 0 {
				t.Errorf("%s: account %d net effect %d after apply+undo, want 0", m.Direction, account, sum)
			}
		}
	}
}

func TestAccountValidate(t *testing.T) {
	valid := Account{Name: "Checking", Kind: Checking, Currency: "EUR"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid account should pass: %v", err)
	}

	a := valid
	a.Name = " "
	if err := a.Validate(); err == nil {
		t.Error("blank name should fail")
	}

	a = valid
	a.Kind = "offshore"
	if err := a.Validate(); err == nil {
		t.Error("unknown kind should fail")
	}

	a = valid
	a.Currency = "EURO"
	if err := a.Validate(); err == nil {
		t.Error("non 3-letter currency should fail")
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food", Direction: Expense}).Validate(); err != nil {
		t.Fatalf("valid category should pass: %v", err)
	}
	if err := (Category{Name: "Salary", Direction: Income}).Validate(); err != nil {
		t.Fatalf("income category should pass: %v", err)
	}
	if err := (Category{Name: "Moves", Direction: Transfer}).Validate(); err == nil {
		t.Error("transfer-direction category should fail")
	}
	if err := (Category{Name: "", Direction: Expense}).Validate(); err == nil {
		t.Error("blank name should fail")
	}
}
