package badgerdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/repository/badgerdb"
	"github.com/bft-labs/streamworker/pkg/repository/repositorytest"
	"github.com/bft-labs/streamworker/pkg/worker"
)

func openInMemory(t *testing.T) *badgerdb.DB {
	t.Helper()
	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepository_Contract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) worker.Repository[*repositorytest.Task] {
		return badgerdb.New[*repositorytest.Task](openInMemory(t))
	})
}

func TestRepository_Lister(t *testing.T) {
	repositorytest.RunLister(t, func(t *testing.T) repositorytest.ListingRepository {
		return badgerdb.New[*repositorytest.Task](openInMemory(t))
	})
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := badgerdb.DefaultConfig(filepath.Join(t.TempDir(), "db"))
	cfg.GCInterval = 0

	db, err := badgerdb.Open(cfg)
	require.NoError(t, err)
	_, err = badgerdb.New[*repositorytest.Task](db).Save(ctx, repositorytest.NewUnit("payments-1"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = badgerdb.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, err := badgerdb.New[*repositorytest.Task](db).FindByID(ctx, "payments-1")
	require.NoError(t, err)
	assert.Equal(t, worker.StatusPartiallyFailed, got.Status)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := badgerdb.Open(badgerdb.Config{})
	assert.Error(t, err)
}
