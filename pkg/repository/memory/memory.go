// Package memory provides an in-process unit of work repository.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Repository keeps units of work in a map. Saved units are shallow copies:
// the task slice is copied but tasks are shared with the caller.
type Repository[T task.Task] struct {
	mu    sync.RWMutex
	units map[string]*worker.UnitOfWork[T]
}

var (
	_ worker.Repository[task.Task] = (*Repository[task.Task])(nil)
	_ worker.Lister                = (*Repository[task.Task])(nil)
)

// New creates an empty repository.
func New[T task.Task]() *Repository[T] {
	return &Repository[T]{units: make(map[string]*worker.UnitOfWork[T])}
}

// Save stores uow, replacing any unit with the same id.
func (r *Repository[T]) Save(ctx context.Context, uow *worker.UnitOfWork[T]) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := clone(uow)
	r.mu.Lock()
	r.units[uow.ID] = c
	r.mu.Unlock()
	return uow, nil
}

// FindByID returns a copy of the stored unit.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	uow, ok := r.units[id]
	if !ok {
		return nil, worker.ErrNotFound
	}
	return clone(uow), nil
}

// Delete removes the unit. Missing ids are ignored.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.units, id)
	r.mu.Unlock()
	return nil
}

// IDs returns the sorted ids of stored units starting with prefix.
func (r *Repository[T]) IDs(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id := range r.units {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of stored units.
func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

func clone[T task.Task](uow *worker.UnitOfWork[T]) *worker.UnitOfWork[T] {
	c := *uow
	c.StreamTasks = append([]T(nil), uow.StreamTasks...)
	return &c
}
