package badgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/bft-labs/streamworker/pkg/repository"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

const keyPrefix = "uow/"

// Repository implements worker.Repository on a DB. Several repositories
// with different task types may share one DB as long as their unit ids do
// not collide.
type Repository[T task.Task] struct {
	db *DB
}

var _ worker.Lister = (*Repository[*task.StreamTask[struct{}, struct{}]])(nil)

// New creates a Repository backed by db. The caller owns db.
func New[T task.Task](db *DB) *Repository[T] {
	return &Repository[T]{db: db}
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

// Save writes the unit in its own transaction.
func (r *Repository[T]) Save(ctx context.Context, uow *worker.UnitOfWork[T]) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := repository.ValidateID(uow.ID); err != nil {
		return nil, err
	}
	data, err := repository.Encode(uow)
	if err != nil {
		return nil, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(uow.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("save unit of work %s: %w", uow.ID, err)
	}
	return uow, nil
}

// FindByID reads the unit stored under id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find unit of work %s: %w", id, err)
	}
	return repository.Decode[T](data)
}

// Delete removes the unit.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("delete unit of work %s: %w", id, err)
	}
	return nil
}

// IDs returns the ids of stored units starting with prefix, in key order.
func (r *Repository[T]) IDs(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = key(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return ids, err
}
