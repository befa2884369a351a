package worker

import (
	"context"
	"time"

	"github.com/bft-labs/streamworker/pkg/task"
)

// StreamTaskExecutor performs the side effect of one task. Each domain
// supplies its own; a saga is a composite implementation.
type StreamTaskExecutor[T task.Task] interface {
	// ExecuteTask runs the task. On success the task carries a response.
	// On failure the task carries an error entry and the returned error is
	// a *task.TaskError. Application-level error codes returned by the
	// backend are data and do not fail the task.
	ExecuteTask(ctx context.Context, t T) (T, error)

	// RollBack compensates a task that succeeded. Nothing to roll back is
	// not an error.
	RollBack(ctx context.Context, t T) (T, error)
}

// Observer is notified when tasks and units finish. Calls for tasks come
// from the task's own goroutine.
type Observer interface {
	OnTaskDone(name string, state task.State, duration time.Duration)
	OnUnitOfWorkDone(status Status, tasks int, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) OnTaskDone(string, task.State, time.Duration)  {}
func (noopObserver) OnUnitOfWorkDone(Status, int, time.Duration) {}
