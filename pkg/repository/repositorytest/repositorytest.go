// Package repositorytest checks worker.Repository implementations against
// the shared contract.
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Task is the task type used by the contract tests.
type Task = task.StreamTask[Payload, Receipt]

// Payload is the task input used by the contract tests.
type Payload struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Receipt is the task response used by the contract tests.
type Receipt struct {
	ID string `json:"id"`
}

// NewUnit builds a finished unit with one succeeded and one failed task.
func NewUnit(id string) *worker.UnitOfWork[*Task] {
	ok := task.New[Payload, Receipt]("payment", id+"-1", id, Payload{Account: "acc-1", Amount: 100})
	ok.Info("payment", "create", task.StatusSuccess, "acc-1", "", "created")
	ok.SetResponse(Receipt{ID: "rcpt-1"})

	bad := task.New[Payload, Receipt]("payment", id+"-2", id, Payload{Account: "acc-2", Amount: -5})
	bad.Error("payment", "create", "acc-2", "", errors.New("amount must be positive"), "", "create failed")

	uow := worker.From(id, ok, bad)
	uow.Status = worker.StatusPartiallyFailed
	uow.StartTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	uow.EndTime = uow.StartTime.Add(250 * time.Millisecond)
	return uow
}

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) worker.Repository[*Task]) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		repo := newRepo(t)
		uow := NewUnit("payments-1")

		saved, err := repo.Save(ctx, uow)
		require.NoError(t, err)
		assert.Equal(t, uow.ID, saved.ID)

		got, err := repo.FindByID(ctx, uow.ID)
		require.NoError(t, err)
		assert.Equal(t, worker.StatusPartiallyFailed, got.Status)
		assert.True(t, uow.StartTime.Equal(got.StartTime))
		assert.True(t, uow.EndTime.Equal(got.EndTime))
		require.Len(t, got.StreamTasks, 2)

		first := got.StreamTasks[0]
		assert.Equal(t, "payments-1-1", first.ID())
		assert.Equal(t, Payload{Account: "acc-1", Amount: 100}, first.Data())
		resp, ok := first.Response()
		require.True(t, ok)
		assert.Equal(t, "rcpt-1", resp.ID)
		assert.Equal(t, task.StateFailed, got.StreamTasks[1].State())
	})

	t.Run("save replaces", func(t *testing.T) {
		repo := newRepo(t)
		uow := NewUnit("payments-2")
		uow.Status = worker.StatusRunning
		_, err := repo.Save(ctx, uow)
		require.NoError(t, err)

		uow.Status = worker.StatusCompleted
		_, err = repo.Save(ctx, uow)
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, uow.ID)
		require.NoError(t, err)
		assert.Equal(t, worker.StatusCompleted, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, worker.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		uow := NewUnit("payments-3")
		_, err := repo.Save(ctx, uow)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, uow.ID))
		_, err = repo.FindByID(ctx, uow.ID)
		assert.ErrorIs(t, err, worker.ErrNotFound)

		assert.NoError(t, repo.Delete(ctx, uow.ID), "deleting twice is not an error")
	})

	t.Run("concurrent saves", func(t *testing.T) {
		repo := newRepo(t)
		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Save(ctx, NewUnit(fmt.Sprintf("payments-c%d", i)))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for i := range n {
			_, err := repo.FindByID(ctx, fmt.Sprintf("payments-c%d", i))
			assert.NoError(t, err)
		}
	})

	t.Run("executor round trip", func(t *testing.T) {
		repo := newRepo(t)
		exec := worker.NewExecutor[*Task](repo, receiptExecutor{})

		tk := task.New[Payload, Receipt]("payment", "payments-4-1", "payments-4", Payload{Account: "acc", Amount: 1})
		done, err := exec.Execute(ctx, worker.From("payments-4", tk))
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, worker.StatusCompleted, got.Status)
		assert.Equal(t, task.StateSucceeded, got.StreamTasks[0].State())
	})
}

type receiptExecutor struct{}

func (receiptExecutor) ExecuteTask(_ context.Context, t *Task) (*Task, error) {
	t.Info("payment", "create", task.StatusSuccess, t.Data().Account, "", "created")
	t.SetResponse(Receipt{ID: "rcpt-" + t.Data().Account})
	return t, nil
}

func (receiptExecutor) RollBack(_ context.Context, t *Task) (*Task, error) {
	return t, nil
}

// ListingRepository is a repository that can enumerate its units.
type ListingRepository interface {
	worker.Repository[*Task]
	worker.Lister
}

// RunLister exercises IDs. newRepo must return an empty repository.
func RunLister(t *testing.T, newRepo func(t *testing.T) ListingRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		ids, err := newRepo(t).IDs(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("prefix", func(t *testing.T) {
		repo := newRepo(t)
		for _, id := range []string{"payments-02", "refunds-01", "payments-01", "pay_x"} {
			_, err := repo.Save(ctx, NewUnit(id))
			require.NoError(t, err)
		}

		ids, err := repo.IDs(ctx, "payments-")
		require.NoError(t, err)
		assert.Equal(t, []string{"payments-01", "payments-02"}, ids)

		all, err := repo.IDs(ctx, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"pay_x", "payments-01", "payments-02", "refunds-01"}, all)

		// no wildcards
		ids, err = repo.IDs(ctx, "pay_")
		require.NoError(t, err)
		assert.Equal(t, []string{"pay_x"}, ids)
	})

	t.Run("deleted units are not listed", func(t *testing.T) {
		repo := newRepo(t)
		for _, id := range []string{"payments-01", "payments-02"} {
			_, err := repo.Save(ctx, NewUnit(id))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Delete(ctx, "payments-01"))

		ids, err := repo.IDs(ctx, "payments-")
		require.NoError(t, err)
		assert.Equal(t, []string{"payments-02"}, ids)
	})
}
