package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bft-labs/streamworker/internal/cliconfig"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/repository/badgerdb"
	"github.com/bft-labs/streamworker/pkg/repository/file"
	"github.com/bft-labs/streamworker/pkg/repository/memory"
	"github.com/bft-labs/streamworker/pkg/repository/sqlstore"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Store owns the persistence backend shared by the repositories of every
// task type. Unit ids carry the task type as prefix, so one badger database
// or SQL table can hold all of them.
type Store struct {
	kind    string
	path    string
	badger  *badgerdb.DB
	db      *sql.DB
	dialect sqlstore.Dialect
}

// OpenStore opens the backend selected by cfg.Persistence.
func OpenStore(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (*Store, error) {
	s := &Store{kind: cfg.Persistence, path: cfg.PersistencePath}
	switch cfg.Persistence {
	case cliconfig.PersistenceMemory, cliconfig.PersistenceFile:
		return s, nil

	case cliconfig.PersistenceBadger:
		bcfg := badgerdb.DefaultConfig(cfg.PersistencePath)
		bcfg.Logger = logger
		db, err := badgerdb.Open(bcfg)
		if err != nil {
			return nil, err
		}
		s.badger = db
		return s, nil

	case cliconfig.PersistenceSQLite, cliconfig.PersistencePostgres:
		s.dialect = sqlstore.SQLite
		if cfg.Persistence == cliconfig.PersistencePostgres {
			s.dialect = sqlstore.Postgres
		}
		db, err := sqlstore.Open(ctx, s.dialect, cfg.PersistencePath)
		if err != nil {
			return nil, err
		}
		s.db = db
		return s, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersistence, cfg.Persistence)
	}
}

// Kind returns the persistence kind.
func (s *Store) Kind() string { return s.kind }

// Close releases the backend.
func (s *Store) Close() error {
	var errs []error
	if s.badger != nil {
		errs = append(errs, s.badger.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Repository returns the repository for task type T. name separates task
// types on backends that need it (the file backend uses one directory each).
func Repository[T task.Task](s *Store, name string) worker.Repository[T] {
	switch {
	case s.badger != nil:
		return badgerdb.New[T](s.badger)
	case s.db != nil:
		return sqlstore.New[T](s.db, s.dialect)
	case s.kind == cliconfig.PersistenceFile:
		return file.New[T](filepath.Join(s.path, name))
	default:
		return memory.New[T]()
	}
}
