// Package limits ingests user limits into the backend, one request per
// limit.
package limits

import (
	"context"
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
	TaskName = "limit"
	Action   = "create"

	createdSuccessfully = "Limit created successfully"
	failedToIngest      = "Failed to ingest limits"
)

// Task ingests one limit.
type Task = task.StreamTask[backend.IngestedLimit, backend.LimitIngestionReport]

// API is the part of the backend client limits need.
type API interface {
	PutLimits(ctx context.Context, limits []backend.IngestedLimit) (*backend.LimitIngestionReport, error)
}

// Executor ingests the limit carried by a task.
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

// ExecuteTask validates and ingests the limit. A report with per-limit
// errors is a successful response.
func (e *Executor) ExecuteTask(ctx context.Context, t *Task) (*Task, error) {
	item := t.Data()

	if err := e.validate.StructCtx(ctx, item); err != nil {
		t.Error(TaskName, Action, item.UserBBID, "", err, "Invalid limit: "+err.Error(), failedToIngest)
		return t, task.NewTaskError(t, err, failedToIngest)
	}

	e.logger.Info("started ingestion of limit", log.String("user", item.UserBBID))
	report, err := e.api.PutLimits(ctx, []backend.IngestedLimit{item})
	if err != nil {
		t.Error(TaskName, Action, item.UserBBID, "", err, "Failed to ingest limit "+err.Error(), failedToIngest)
		return t, task.NewTaskError(t, err, failedToIngest)
	}

	t.SetResponse(*report)
	t.Info(TaskName, Action, task.StatusSuccess, item.UserBBID, stats(report.IngestionStats), createdSuccessfully)
	return t, nil
}

// RollBack is a no-op: ingested limits are replaced by the next ingestion.
func (e *Executor) RollBack(_ context.Context, t *Task) (*Task, error) {
	return t, nil
}

func stats(s backend.IngestionStats) string {
	return fmt.Sprintf("created=%d updated=%d failed=%d", s.Created, s.Updated, s.Failed)
}

// NewTask wraps a limit into a task.
func NewTask(id, unitOfWorkID string, item backend.IngestedLimit) *Task {
	return task.New[backend.IngestedLimit, backend.LimitIngestionReport](TaskName, id, unitOfWorkID, item)
}

// Key identifies a limit within a unit of work.
func Key(item backend.IngestedLimit) string {
	return item.UserBBID
}

// Service ingests streams of limits.
type Service struct {
	runner *worker.Runner[backend.IngestedLimit, *Task]
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
	preparer, err := worker.NewPreparer(bufferSize, "limits", Key, NewTask)
	if err != nil {
		return nil, err
	}
	opts = append([]worker.Option{worker.WithLogger(logger)}, opts...)
	ex := worker.NewExecutor(repository, executor, opts...)
	return &Service{runner: worker.NewRunner(preparer, ex, config, logger)}, nil
}

// CreateUserLimits ingests items and calls emit once per item with its
// outcome. Failed items do not stop the stream.
func (s *Service) CreateUserLimits(ctx context.Context, items iter.Seq[backend.IngestedLimit], emit func(worker.Result[*Task])) error {
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
