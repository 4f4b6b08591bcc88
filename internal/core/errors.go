package core

import "errors"

// Engine error kinds. Callers classify failures with errors.Is; validation
// helpers add context by wrapping these with fmt.Errorf and %w.
var (
	// ErrNotFound covers entities that are absent, soft-deleted, or (for
	// movements and rules) owned by someone else.
	ErrNotFound = errors.New("not found")

	// ErrOwnershipViolation means a referenced account or category exists
	// but belongs to a different owner.
	ErrOwnershipViolation = errors.New("ownership violation")

	// ErrInvalidState covers structural problems: a transfer without a
	// destination, source equal to destination, non-positive amounts,
	// malformed cadences.
	ErrInvalidState = errors.New("invalid state")

	// ErrCategoryMismatch means the category direction disagrees with the
	// movement direction.
	ErrCategoryMismatch = errors.New("category direction mismatch")
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)
