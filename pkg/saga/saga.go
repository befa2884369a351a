package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// ActionRollback is the audit action recorded for compensating steps.
const ActionRollback = "rollback"

// Step is one sub-operation of a saga. Do mutates the accumulator on
// success. Undo is optional and reverses the effect of Do.
type Step[D, R any] struct {
	EventType string
	Action    string
	Do        func(ctx context.Context, data D, acc *R) error
	Undo      func(ctx context.Context, data D, acc *R) error
}

// Option configures a Saga.
type Option func(*config)

type config struct {
	compensate bool
	logger     log.Logger
}

// WithCompensation makes the saga undo its completed steps, in reverse
// order, when a later step fails.
func WithCompensation() Option {
	return func(c *config) { c.compensate = true }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Saga executes tasks of type *task.StreamTask[D, R] step by step.
type Saga[D, R any] struct {
	seed   func(D) R
	steps  []Step[D, R]
	config config
}

var _ worker.StreamTaskExecutor[*task.StreamTask[struct{}, struct{}]] = (*Saga[struct{}, struct{}])(nil)

// New creates a saga. seed builds the initial accumulator from the task
// input; it may be nil, in which case the zero value is used.
func New[D, R any](seed func(D) R, steps []Step[D, R], opts ...Option) *Saga[D, R] {
	c := config{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&c)
	}
	return &Saga[D, R]{seed: seed, steps: steps, config: c}
}

// Compensating reports whether failed executions undo completed steps.
func (s *Saga[D, R]) Compensating() bool {
	return s.config.compensate
}

// ExecuteTask runs every step in order. Each success is recorded on the
// task; the first failure stops the saga and is returned as a
// *task.TaskError. With compensation enabled the undo entries come first and
// the failure entry, carrying any undo errors, is always the last one. When
// ctx is cancelled no further entries are added.
func (s *Saga[D, R]) ExecuteTask(ctx context.Context, t *task.StreamTask[D, R]) (*task.StreamTask[D, R], error) {
	var acc R
	if s.seed != nil {
		acc = s.seed(t.Data())
	}

	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		if err := step.Do(ctx, t.Data(), &acc); err != nil {
			if ctx.Err() != nil {
				return t, ctx.Err()
			}
			s.config.logger.Warn("saga step failed",
				log.TaskID(t.ID()),
				log.String("event_type", step.EventType),
				log.String("action", step.Action),
				log.Err(err),
			)
			// Compensation is recorded before the terminal entry.
			if s.config.compensate {
				if uerr := s.undo(ctx, t, s.steps[:i], &acc); uerr != nil {
					err = errors.Join(err, fmt.Errorf("compensation: %w", uerr))
				}
			}
			msg := fmt.Sprintf("%s %s failed", step.EventType, step.Action)
			t.Error(step.EventType, step.Action, t.ID(), "", err, "", msg)
			return t, task.NewTaskError(t, err, msg)
		}
		t.Info(step.EventType, step.Action, task.StatusSuccess, t.ID(), "",
			fmt.Sprintf("%s %s succeeded", step.EventType, step.Action))
	}

	t.SetResponse(acc)
	return t, nil
}

// RollBack undoes every step of a task that succeeded. A task without a
// response has nothing to roll back and is returned unchanged. Failed undos
// are reported in a single terminal entry.
func (s *Saga[D, R]) RollBack(ctx context.Context, t *task.StreamTask[D, R]) (*task.StreamTask[D, R], error) {
	acc, ok := t.Response()
	if !ok {
		return t, nil
	}
	if err := s.undo(ctx, t, s.steps, &acc); err != nil {
		t.Error(t.Name(), ActionRollback, t.ID(), "", err, "", "rollback failed")
		return t, task.NewTaskError(t, err, "rollback failed")
	}
	return t, nil
}

// undo compensates steps in reverse order. Every attempt is recorded as a
// non-terminal entry; it keeps going after a failed undo and returns the
// joined errors for the caller to report.
func (s *Saga[D, R]) undo(ctx context.Context, t *task.StreamTask[D, R], steps []Step[D, R], acc *R) error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(ctx, t.Data(), acc); err != nil {
			t.Info(step.EventType, ActionRollback, task.StatusInitiated, t.ID(), "",
				fmt.Sprintf("%s rollback failed: %v", step.EventType, err))
			s.config.logger.Error("saga rollback failed",
				log.TaskID(t.ID()),
				log.String("event_type", step.EventType),
				log.Err(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.EventType, err))
			continue
		}
		t.Info(step.EventType, ActionRollback, task.StatusSuccess, t.ID(), "",
			fmt.Sprintf("%s rolled back", step.EventType))
	}
	return errors.Join(errs...)
}
