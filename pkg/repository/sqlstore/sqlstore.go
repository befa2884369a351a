// Package sqlstore stores units of work in a SQL table on PostgreSQL or
// SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	_ "modernc.org/sqlite"

	"github.com/bft-labs/streamworker/pkg/repository"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const table = "units_of_work"

var (
	unitFields = []string{
		"id",
		"status",
		"document",
		"updated_at",
	}

	schemas = map[Dialect]string{
		Postgres: `
CREATE TABLE IF NOT EXISTS units_of_work (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
		SQLite: `
CREATE TABLE IF NOT EXISTS units_of_work (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    document   TEXT NOT NULL,
    updated_at DATETIME NOT NULL
)`,
	}
)

// ErrUnknownDialect is returned for dialects other than Postgres and SQLite.
var ErrUnknownDialect = errors.New("sqlstore: unknown dialect")

func (d Dialect) driver() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, d)
	}
}

func (d Dialect) placeholder() squirrel.PlaceholderFormat {
	if d == Postgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// Open connects to the database and creates the table if needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the units_of_work table.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	schema, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create %s table: %w", table, err)
	}
	return nil
}

// Repository implements worker.Repository on a SQL table.
type Repository[T task.Task] struct {
	sb  squirrel.StatementBuilderType
	now func() time.Time
}

// New creates a Repository running statements on br.
func New[T task.Task](br squirrel.BaseRunner, dialect Dialect) *Repository[T] {
	return &Repository[T]{
		sb:  squirrel.StatementBuilder.PlaceholderFormat(dialect.placeholder()).RunWith(br),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Save upserts the unit.
func (r *Repository[T]) Save(ctx context.Context, uow *worker.UnitOfWork[T]) (*worker.UnitOfWork[T], error) {
	data, err := repository.Encode(uow)
	if err != nil {
		return nil, err
	}

	_, err = r.sb.Insert(table).
		Columns(unitFields...).
		Values(uow.ID, string(uow.Status), string(data), r.now()).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = excluded.status, document = excluded.document, updated_at = excluded.updated_at").
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to save unit of work %s: %w", uow.ID, err)
	}
	return uow, nil
}

// FindByID loads the unit stored under id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*worker.UnitOfWork[T], error) {
	var document []byte
	err := r.sb.Select("document").
		From(table).
		Where(squirrel.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unit of work %s: %w", id, err)
	}
	return repository.Decode[T](document)
}

// Delete removes the unit.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	_, err := r.sb.Delete(table).
		Where(squirrel.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete unit of work %s: %w", id, err)
	}
	return nil
}

// IDs returns the ids of stored units starting with prefix, in id order.
func (r *Repository[T]) IDs(ctx context.Context, prefix string) ([]string, error) {
	q := r.sb.Select("id").From(table).OrderBy("id ASC")
	if prefix != "" {
		q = q.Where(squirrel.Like{"id": prefix + "%"})
	}
	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list units of work: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		// LIKE treats _ and % in prefix as wildcards
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
