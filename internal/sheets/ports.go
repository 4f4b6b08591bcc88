// Package sheets defines the outbound ports the export worker writes
// through. Adapters live in the memory and google subpackages.
package sheets

import (
	"context"

	"registro/internal/core"
)

type (
	// MovementWriter appends one movement to the export target and
	// returns an adapter-specific row reference.
	MovementWriter interface {
		Append(ctx context.Context, m core.Movement) (rowRef string, err error)
	}

	// MovementDeleter removes an exported movement by its ledger id.
	MovementDeleter interface {
		Delete(ctx context.Context, id int64) error
	}
)
