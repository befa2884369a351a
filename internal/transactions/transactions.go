// Package transactions ingests batches of transactions into the backend.
package transactions

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Audit vocabulary.
const (
	TaskName = "transactions"
	Action   = "post"
)

// ErrEmptyBatch is recorded for tasks without transactions.
var ErrEmptyBatch = errors.New("transactions: empty batch")

// Task posts one batch of transactions.
type Task = task.StreamTask[[]backend.Transaction, []backend.TransactionID]

// API is the part of the backend client transactions need.
type API interface {
	PostTransactions(ctx context.Context, transactions []backend.Transaction) ([]backend.TransactionID, error)
}

// Executor posts the batch carried by a task.
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

// ExecuteTask validates and posts the batch. The response holds the minted
// ids; a rejected batch carries the backend's body as error detail.
func (e *Executor) ExecuteTask(ctx context.Context, t *Task) (*Task, error) {
	batch := t.Data()
	ids := externalIDs(batch)

	if err := e.check(ctx, batch); err != nil {
		t.Error(TaskName, Action, ids, "", err, "", "Invalid transactions")
		return t, task.NewTaskError(t, err, "Invalid transactions")
	}

	e.logger.Info("posting transactions", log.Int("count", len(batch)))
	minted, err := e.api.PostTransactions(ctx, batch)
	if err != nil {
		detail := err.Error()
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.Body != "" {
			detail = statusErr.Body
		}
		t.Error(TaskName, Action, ids, "", err, detail, "Failed to ingest transactions")
		return t, task.NewTaskError(t, err, "Failed to ingest transactions: "+detail)
	}

	mintedIDs := make([]string, 0, len(minted))
	for _, m := range minted {
		mintedIDs = append(mintedIDs, m.ID)
	}
	t.SetResponse(minted)
	t.Info(TaskName, Action, task.StatusSuccess, ids, strings.Join(mintedIDs, ","), "Ingested transactions")
	return t, nil
}

// RollBack is a no-op: the backend has no bulk delete by id.
func (e *Executor) RollBack(_ context.Context, t *Task) (*Task, error) {
	return t, nil
}

func (e *Executor) check(ctx context.Context, batch []backend.Transaction) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	return e.validate.VarCtx(ctx, batch, "dive")
}

func externalIDs(batch []backend.Transaction) string {
	ids := make([]string, 0, len(batch))
	for _, tx := range batch {
		ids = append(ids, tx.ExternalID)
	}
	return strings.Join(ids, ",")
}

// NewTask wraps a batch into a task.
func NewTask(id, unitOfWorkID string, batch []backend.Transaction) *Task {
	return task.New[[]backend.Transaction, []backend.TransactionID](TaskName, id, unitOfWorkID, batch)
}

// Key identifies a batch by its first transaction's arrangement.
func Key(batch []backend.Transaction) string {
	if len(batch) == 0 {
		return ""
	}
	return batch[0].ArrangementID
}

// Service ingests streams of transaction batches.
type Service struct {
	runner *worker.Runner[[]backend.Transaction, *Task]
}

// NewService creates a Service. bufferSize limits batches per unit of work.
func NewService(
	bufferSize int,
	repository worker.Repository[*Task],
	executor worker.StreamTaskExecutor[*Task],
	config worker.RunnerConfig,
	logger log.Logger,
	opts ...worker.Option,
) (*Service, error) {
	preparer, err := worker.NewPreparer(bufferSize, "transactions", Key, NewTask)
	if err != nil {
		return nil, err
	}
	opts = append([]worker.Option{worker.WithLogger(logger)}, opts...)
	ex := worker.NewExecutor(repository, executor, opts...)
	return &Service{runner: worker.NewRunner(preparer, ex, config, logger)}, nil
}

// ProcessTransactions ingests batches and calls emit once per batch.
func (s *Service) ProcessTransactions(ctx context.Context, batches iter.Seq[[]backend.Transaction], emit func(worker.Result[*Task])) error {
	return s.runner.Run(ctx, batches, func(uow *worker.UnitOfWork[*Task]) {
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

// IDs flattens the minted ids of every succeeded result.
func IDs(results ...worker.Result[*Task]) []backend.TransactionID {
	var out []backend.TransactionID
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if ids, ok := r.Task.Response(); ok {
			out = append(out, ids...)
		}
	}
	return out
}
