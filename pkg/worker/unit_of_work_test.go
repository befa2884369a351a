package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

func TestUnitOfWork_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    worker.Status
		to      worker.Status
		wantErr bool
	}{
		{"pending to running", worker.StatusPending, worker.StatusRunning, false},
		{"pending to completed", worker.StatusPending, worker.StatusCompleted, true},
		{"running to completed", worker.StatusRunning, worker.StatusCompleted, false},
		{"running to partially failed", worker.StatusRunning, worker.StatusPartiallyFailed, false},
		{"running to pending", worker.StatusRunning, worker.StatusPending, true},
		{"running to running", worker.StatusRunning, worker.StatusRunning, true},
		{"completed to running", worker.StatusCompleted, worker.StatusRunning, false},
		{"partially failed to running", worker.StatusPartiallyFailed, worker.StatusRunning, false},
		{"completed to partially failed", worker.StatusCompleted, worker.StatusPartiallyFailed, true},
		{"empty to running", "", worker.StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uow := worker.From[*testTask]("uow-1")
			uow.Status = tt.from

			err := uow.TransitionTo(tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, worker.ErrInvalidTransition)
				assert.Equal(t, tt.from, uow.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, uow.Status)
		})
	}
}

func TestUnitOfWork_From(t *testing.T) {
	a, b := newTestTask("a", "1"), newTestTask("b", "2")
	uow := worker.From("uow-1", a, b)

	assert.Equal(t, "uow-1", uow.ID)
	assert.Equal(t, worker.StatusPending, uow.Status)
	assert.Equal(t, []*testTask{a, b}, uow.StreamTasks)
	assert.True(t, uow.StartTime.IsZero())
}

func TestUnitOfWork_Counts(t *testing.T) {
	ok := newTestTask("ok", "x")
	ok.SetResponse("done")
	bad := newTestTask("bad", "y")
	bad.Error("test", "create", "bad", "", assert.AnError, "", "failed")
	waiting := newTestTask("waiting", "z")

	uow := worker.From("uow-1", ok, bad, waiting)

	succeeded, failed, pending := uow.Counts()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, pending)
	assert.True(t, uow.Failed())
	assert.Equal(t, task.StateFailed, bad.State())
}

func TestUnitOfWork_Duration(t *testing.T) {
	uow := worker.From[*testTask]("uow-1")
	assert.Zero(t, uow.Duration())

	uow.StartTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Zero(t, uow.Duration())

	uow.EndTime = uow.StartTime.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, uow.Duration())
}

func TestStatus_Finished(t *testing.T) {
	assert.False(t, worker.StatusPending.Finished())
	assert.False(t, worker.StatusRunning.Finished())
	assert.True(t, worker.StatusCompleted.Finished())
	assert.True(t, worker.StatusPartiallyFailed.Finished())
}
