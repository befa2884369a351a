// Package file stores units of work as JSON documents in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/streamworker/pkg/repository"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

const fileExt = ".json"

// Repository implements worker.Repository with one file per unit of work.
type Repository[T task.Task] struct {
	dir string
}

var _ worker.Lister = (*Repository[task.Task])(nil)

// New creates a Repository rooted at dir. The directory is created on the
// first save.
func New[T task.Task](dir string) *Repository[T] {
	return &Repository[T]{dir: dir}
}

// Save persists the unit atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (r *Repository[T]) Save(ctx context.Context, uow *worker.UnitOfWork[T]) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := repository.ValidateID(uow.ID); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return nil, err
	}

	data, err := repository.Encode(uow)
	if err != nil {
		return nil, err
	}

	// Temp file per call: concurrent saves of the same unit must not share it.
	tmp, err := os.CreateTemp(r.dir, uow.ID+".*.tmp")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	// Atomic rename
	if err := os.Rename(tmp.Name(), r.Path(uow.ID)); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return uow, nil
}

// FindByID reads the unit stored under id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*worker.UnitOfWork[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := repository.ValidateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
		}
		return nil, err
	}
	return repository.Decode[T](data)
}

// Delete removes the unit's file.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(r.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IDs returns the ids of stored units starting with prefix, in file name
// order. A directory that was never written to holds no units.
func (r *Repository[T]) IDs(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	return ids, nil
}

// Path returns the full path of the file holding id.
func (r *Repository[T]) Path(id string) string {
	return filepath.Join(r.dir, id+fileExt)
}
