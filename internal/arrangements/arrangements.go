// Package arrangements upserts product arrangements into the backend, one
// batch request per arrangement.
package arrangements

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Audit vocabulary.
const (
	TaskName       = "arrangement"
	Action         = "upsert"
	ActionRollback = "delete"
)

// ErrRejected is recorded when the batch response reports a failed item.
var ErrRejected = errors.New("arrangements: batch item rejected")

// Task upserts one arrangement.
type Task = task.StreamTask[backend.Arrangement, backend.ArrangementBatchItem]

// API is the part of the backend client arrangements need.
type API interface {
	UpsertArrangements(ctx context.Context, arrangements []backend.Arrangement) ([]backend.ArrangementBatchItem, error)
	DeleteArrangement(ctx context.Context, externalID string) error
}

// Executor upserts the arrangement carried by a task.
type Executor struct {
	api      API
	validate *validator.Validate
	logger   log.Logger
}

var _ worker.StreamTaskExecutor[*Task] = (*Executor)(nil)

// NewExecutor creates an Executor.
func NewExecutor(api API, validate *validator.Validate, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Executor{api: api, validate: validate, logger: logger}
}

// ExecuteTask validates and upserts the arrangement. The backend answers
// 2xx even when the item failed, so the item status decides the outcome.
func (e *Executor) ExecuteTask(ctx context.Context, t *Task) (*Task, error) {
	a := t.Data()

	if err := e.validate.StructCtx(ctx, a); err != nil {
		t.Error(TaskName, Action, a.ExternalID, "", err, "", "Invalid arrangement")
		return t, task.NewTaskError(t, err, "Invalid arrangement")
	}

	items, err := e.api.UpsertArrangements(ctx, []backend.Arrangement{a})
	if err != nil {
		t.Error(TaskName, Action, a.ExternalID, "", err, "", "Batch arrangement update failed")
		return t, task.NewTaskError(t, err, "Batch arrangement update failed")
	}
	if len(items) != 1 || !items[0].Succeeded() {
		err := fmt.Errorf("%w: %v", ErrRejected, items)
		t.Error(TaskName, Action, a.ExternalID, "", err, "", "Batch arrangement update failed")
		return t, task.NewTaskError(t, err, "Batch arrangement update failed")
	}

	item := items[0]
	e.logger.Info("upserted arrangement",
		log.String("arrangement", a.ExternalID),
		log.String("resource_id", item.ResourceID),
		log.String("action", item.Action),
	)
	t.SetResponse(item)
	t.Info(TaskName, Action, task.StatusSuccess, a.ExternalID, item.ResourceID, "Arrangement "+item.Action)
	return t, nil
}

// RollBack deletes an upserted arrangement.
func (e *Executor) RollBack(ctx context.Context, t *Task) (*Task, error) {
	if _, ok := t.Response(); !ok {
		return t, nil
	}
	a := t.Data()
	if err := e.api.DeleteArrangement(ctx, a.ExternalID); err != nil {
		t.Error(TaskName, ActionRollback, a.ExternalID, "", err, "", "Failed to delete arrangement")
		return t, task.NewTaskError(t, err, "Failed to delete arrangement")
	}
	t.Info(TaskName, ActionRollback, task.StatusSuccess, a.ExternalID, "", "Arrangement deleted")
	return t, nil
}

// NewTask wraps an arrangement into a task.
func NewTask(id, unitOfWorkID string, a backend.Arrangement) *Task {
	return task.New[backend.Arrangement, backend.ArrangementBatchItem](TaskName, id, unitOfWorkID, a)
}

// Key identifies an arrangement within a unit of work.
func Key(a backend.Arrangement) string {
	return a.ExternalID
}

// Service upserts streams of arrangements.
type Service struct {
	runner *worker.Runner[backend.Arrangement, *Task]
}

// NewService creates a Service. bufferSize limits tasks per unit of work.
func NewService(
	bufferSize int,
	repository worker.Repository[*Task],
	executor worker.StreamTaskExecutor[*Task],
	config worker.RunnerConfig,
	logger log.Logger,
	opts ...worker.Option,
) (*Service, error) {
	preparer, err := worker.NewPreparer(bufferSize, "arrangements", Key, NewTask)
	if err != nil {
		return nil, err
	}
	opts = append([]worker.Option{worker.WithLogger(logger)}, opts...)
	ex := worker.NewExecutor(repository, executor, opts...)
	return &Service{runner: worker.NewRunner(preparer, ex, config, logger)}, nil
}

// UpsertArrangements upserts items and calls emit once per item.
func (s *Service) UpsertArrangements(ctx context.Context, items iter.Seq[backend.Arrangement], emit func(worker.Result[*Task])) error {
	return s.runner.Run(ctx, items, func(uow *worker.UnitOfWork[*Task]) {
		for _, r := range worker.Results(uow) {
			emit(r)
		}
	})
}

// Resume finishes the units of work a previous process left unfinished and
// calls emit once per task of each. It returns the number of units resumed.
func (s *Service) Resume(ctx context.Context, emit func(worker.Result[*Task])) (int, error) {
	return s.runner.Resume(ctx, func(uow *worker.UnitOfWork[*Task]) {
		for _, r := range worker.Results(uow) {
			emit(r)
		}
	})
}
