package worker

import (
	"fmt"
	"time"

	"github.com/bft-labs/streamworker/pkg/task"
)

// Status is the lifecycle state of a unit of work.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusRunning         Status = "RUNNING"
	StatusCompleted       Status = "COMPLETED"
	StatusPartiallyFailed Status = "PARTIALLY_FAILED"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusPartiallyFailed
}

// UnitOfWork is a group of tasks tracked and persisted together. It owns
// its tasks exclusively.
type UnitOfWork[T task.Task] struct {
	ID          string    `json:"id"`
	StreamTasks []T       `json:"streamTasks"`
	Status      Status    `json:"status"`
	StartTime   time.Time `json:"startTime,omitzero"`
	EndTime     time.Time `json:"endTime,omitzero"`
}

// From creates a pending unit of work holding tasks in submission order.
func From[T task.Task](id string, tasks ...T) *UnitOfWork[T] {
	return &UnitOfWork[T]{
		ID:          id,
		StreamTasks: tasks,
		Status:      StatusPending,
	}
}

// TransitionTo moves the unit to next, validating the transition.
//
//	PENDING -> RUNNING -> COMPLETED | PARTIALLY_FAILED
//
// A finished unit may go back to RUNNING to resume its pending tasks.
func (u *UnitOfWork[T]) TransitionTo(next Status) error {
	valid := false
	switch u.Status {
	case StatusPending, "":
		valid = next == StatusRunning
	case StatusRunning:
		valid = next.Finished()
	case StatusCompleted, StatusPartiallyFailed:
		valid = next == StatusRunning
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.Status, next)
	}
	u.Status = next
	return nil
}

// Failed reports whether any task ended in error.
func (u *UnitOfWork[T]) Failed() bool {
	for _, t := range u.StreamTasks {
		if t.State() == task.StateFailed {
			return true
		}
	}
	return false
}

// Counts returns how many tasks are in each state.
func (u *UnitOfWork[T]) Counts() (succeeded, failed, pending int) {
	for _, t := range u.StreamTasks {
		switch t.State() {
		case task.StateSucceeded:
			succeeded++
		case task.StateFailed:
			failed++
		default:
			pending++
		}
	}
	return succeeded, failed, pending
}

// Duration returns the time between start and end, or zero while running.
func (u *UnitOfWork[T]) Duration() time.Duration {
	if u.StartTime.IsZero() || u.EndTime.IsZero() {
		return 0
	}
	return u.EndTime.Sub(u.StartTime)
}
