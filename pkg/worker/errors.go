package worker

import "errors"

// Engine errors. They can be checked with errors.Is.
var (
	// ErrNotFound is returned by repositories when no unit of work has the id.
	ErrNotFound = errors.New("worker: unit of work not found")

	// ErrRepository wraps failures of the repository. The unit of work
	// should be retried as a whole.
	ErrRepository = errors.New("worker: repository unavailable")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("worker: invalid status transition")

	// ErrInvalidBufferSize is returned for a non-positive buffer size.
	ErrInvalidBufferSize = errors.New("worker: buffer size must be positive")

	// ErrEmptyUnitOfWork is returned when executing a unit without tasks.
	ErrEmptyUnitOfWork = errors.New("worker: unit of work has no tasks")

	// ErrNotListable is returned by Resume when the repository cannot
	// enumerate its units.
	ErrNotListable = errors.New("worker: repository cannot list units of work")

	// ErrTaskNotFinished marks results of tasks left pending by cancellation.
	ErrTaskNotFinished = errors.New("worker: task did not finish")
)
