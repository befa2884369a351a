package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/task"
)

// Option configures optional behavior of an Executor.
type Option func(*options)

type options struct {
	logger   log.Logger
	observer Observer
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets an observer notified when tasks and units finish.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// Executor drives the tasks of a unit of work through a StreamTaskExecutor
// and persists the unit before and after.
type Executor[T task.Task] struct {
	repository Repository[T]
	executor   StreamTaskExecutor[T]
	logger     log.Logger
	observer   Observer
}

// NewExecutor creates an Executor.
func NewExecutor[T task.Task](repository Repository[T], executor StreamTaskExecutor[T], opts ...Option) *Executor[T] {
	o := options{logger: log.NewNoopLogger(), observer: noopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor[T]{
		repository: repository,
		executor:   executor,
		logger:     o.logger,
		observer:   o.observer,
	}
}

// Execute persists uow as RUNNING, runs every pending task concurrently and
// persists the result as COMPLETED or PARTIALLY_FAILED. Task failures are
// recorded on the tasks. The returned error is non-nil only when the
// repository fails (ErrRepository) or ctx is done; in the latter case
// tasks keep whatever audit state they reached and nothing is saved.
func (e *Executor[T]) Execute(ctx context.Context, uow *UnitOfWork[T]) (*UnitOfWork[T], error) {
	if uow == nil || len(uow.StreamTasks) == 0 {
		return uow, ErrEmptyUnitOfWork
	}

	logger := e.logger.With(log.UnitOfWorkID(uow.ID))

	previous := uow.Status
	if err := uow.TransitionTo(StatusRunning); err != nil {
		return uow, err
	}
	uow.StartTime = time.Now().UTC()
	uow.EndTime = time.Time{}

	if _, err := e.repository.Save(ctx, uow); err != nil {
		uow.Status = previous
		return uow, fmt.Errorf("%w: save %s as running: %w", ErrRepository, uow.ID, err)
	}

	logger.Debug("unit of work started", log.Int("tasks", len(uow.StreamTasks)))

	var g errgroup.Group
	for _, t := range uow.StreamTasks {
		if t.State() != task.StatePending {
			continue
		}
		g.Go(func() error {
			e.runTask(ctx, logger, t)
			// never fail the group: siblings must keep running
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("unit of work cancelled", log.Err(err))
		return uow, err
	}

	next := StatusCompleted
	if uow.Failed() {
		next = StatusPartiallyFailed
	}
	if err := uow.TransitionTo(next); err != nil {
		return uow, err
	}
	uow.EndTime = time.Now().UTC()

	saved, err := e.repository.Save(ctx, uow)
	if err != nil {
		return uow, fmt.Errorf("%w: save %s as %s: %w", ErrRepository, uow.ID, next, err)
	}

	succeeded, failed, _ := uow.Counts()
	e.observer.OnUnitOfWorkDone(next, len(uow.StreamTasks), uow.Duration())
	logger.Info("unit of work finished",
		log.String("status", string(next)),
		log.Int("succeeded", succeeded),
		log.Int("failed", failed),
		log.Duration("duration", uow.Duration()),
	)
	return saved, nil
}

// runTask executes one task and enforces the terminal-state invariants:
// a failed execution always leaves an error entry, and a success without
// a response is treated as a failure.
func (e *Executor[T]) runTask(ctx context.Context, logger log.Logger, t T) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.Error(t.Name(), "execute", t.ID(), "", fmt.Errorf("panic: %v", r), "", "task panicked")
			logger.Error("task panicked", log.TaskID(t.ID()), log.Any("panic", r))
		}
		e.observer.OnTaskDone(t.Name(), t.State(), time.Since(start))
	}()

	_, err := e.executor.ExecuteTask(ctx, t)
	if ctx.Err() != nil {
		return
	}

	switch {
	case err != nil:
		if t.State() != task.StateFailed {
			t.Error(t.Name(), "execute", t.ID(), "", err, "", "task failed")
		}
		logger.Warn("task failed", log.TaskID(t.ID()), log.Err(err))
	case t.State() == task.StatePending:
		t.Error(t.Name(), "execute", t.ID(), "", task.ErrNoResponse, "", "task completed without a response")
		logger.Warn("task completed without a response", log.TaskID(t.ID()))
	}
}
