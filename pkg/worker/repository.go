package worker

import (
	"context"

	"github.com/bft-labs/streamworker/pkg/task"
)

// Repository persists unit of work snapshots keyed by id.
// Implementations must support concurrent Save calls.
type Repository[T task.Task] interface {
	// Save stores the current state of the unit and returns it.
	Save(ctx context.Context, uow *UnitOfWork[T]) (*UnitOfWork[T], error)

	// FindByID returns the unit stored under id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*UnitOfWork[T], error)

	// Delete evicts the unit. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by repositories that can enumerate stored units.
// Runners need it to resume units left unfinished by an earlier process.
type Lister interface {
	// IDs returns the ids of stored units that start with prefix, oldest
	// first for time-ordered ids.
	IDs(ctx context.Context, prefix string) ([]string, error)
}
