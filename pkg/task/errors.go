package task

import (
	"errors"
	"fmt"
)

// ErrNoResponse is recorded when an executor reports success without
// setting a response.
var ErrNoResponse = errors.New("task: executor returned without a response")

// TaskError is returned by executors when a task fails. It carries the
// failed task so callers can correlate the error with its input.
type TaskError struct {
	Task    Task
	Message string
	Err     error
}

// NewTaskError wraps err with the task it failed.
func NewTaskError(t Task, err error, message string) *TaskError {
	return &TaskError{Task: t, Message: message, Err: err}
}

func (e *TaskError) Error() string {
	id := ""
	if e.Task != nil {
		id = e.Task.ID()
	}
	switch {
	case e.Err == nil:
		return fmt.Sprintf("task %s: %s", id, e.Message)
	case e.Message == "":
		return fmt.Sprintf("task %s: %v", id, e.Err)
	default:
		return fmt.Sprintf("task %s: %s: %v", id, e.Message, e.Err)
	}
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
