package worker

import (
	"errors"

	"github.com/bft-labs/streamworker/pkg/task"
)

// Result is the outcome of one task of a finished unit.
type Result[T task.Task] struct {
	Task T
	Err  error
}

// Results returns one Result per task in submission order. Failed tasks
// carry a *task.TaskError built from their terminal audit entry; tasks left
// pending carry ErrTaskNotFinished.
func Results[T task.Task](uow *UnitOfWork[T]) []Result[T] {
	if uow == nil {
		return nil
	}
	out := make([]Result[T], 0, len(uow.StreamTasks))
	for _, t := range uow.StreamTasks {
		r := Result[T]{Task: t}
		switch t.State() {
		case task.StateFailed:
			r.Err = failure(t)
		case task.StatePending:
			r.Err = task.NewTaskError(t, ErrTaskNotFinished, "")
		}
		out = append(out, r)
	}
	return out
}

func failure(t task.Task) error {
	// a task carries at most one terminal entry
	for _, e := range t.Events() {
		if e.Terminal() {
			return task.NewTaskError(t, errors.New(e.ErrorDetail), e.Message)
		}
	}
	return task.NewTaskError(t, nil, "task failed")
}
