// Package legalentity bootstraps a legal entity with its users and
// product groups through a three-step saga.
package legalentity

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/saga"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// TaskName names legal entity bootstrap tasks.
const TaskName = "legal-entity"

// Audit event types, one per saga step.
const (
	EventLegalEntity  = "legal-entity"
	EventUser         = "user"
	EventProductGroup = "product-group"
)

// Hierarchy is one legal entity aggregate.
type Hierarchy struct {
	LegalEntity   backend.LegalEntity    `json:"legalEntity"`
	Users         []backend.User         `json:"users,omitempty" validate:"dive"`
	ProductGroups []backend.ProductGroup `json:"productGroups,omitempty" validate:"dive"`
}

// Created holds the ids minted while bootstrapping a Hierarchy.
type Created struct {
	LegalEntityID   string           `json:"legalEntityId"`
	Users           []backend.UserID `json:"users,omitempty"`
	ProductGroupIDs []string         `json:"productGroupIds,omitempty"`
}

// Task bootstraps one hierarchy.
type Task = task.StreamTask[Hierarchy, Created]

// API is the part of the backend client the saga needs.
type API interface {
	CreateLegalEntity(ctx context.Context, le backend.LegalEntity) (string, error)
	DeleteLegalEntity(ctx context.Context, id string) error
	CreateUsers(ctx context.Context, legalEntityID string, users []backend.User) ([]backend.UserID, error)
	DeleteUser(ctx context.Context, id string) error
	CreateProductGroup(ctx context.Context, legalEntityID string, group backend.ProductGroup) (string, error)
}

// NewSaga builds the legal entity saga: create the entity, then its users,
// then its product groups. Product groups cannot be deleted, so only the
// first two steps are compensable.
func NewSaga(api API, validate *validator.Validate, opts ...saga.Option) *saga.Saga[Hierarchy, Created] {
	steps := []saga.Step[Hierarchy, Created]{
		{
			EventType: EventLegalEntity,
			Action:    "create",
			Do: func(ctx context.Context, h Hierarchy, acc *Created) error {
				if err := validate.StructCtx(ctx, h); err != nil {
					return fmt.Errorf("invalid hierarchy: %w", err)
				}
				id, err := api.CreateLegalEntity(ctx, h.LegalEntity)
				if err != nil {
					return err
				}
				acc.LegalEntityID = id
				return nil
			},
			Undo: func(ctx context.Context, _ Hierarchy, acc *Created) error {
				if acc.LegalEntityID == "" {
					return nil
				}
				return api.DeleteLegalEntity(ctx, acc.LegalEntityID)
			},
		},
		{
			EventType: EventUser,
			Action:    "create",
			Do: func(ctx context.Context, h Hierarchy, acc *Created) error {
				if len(h.Users) == 0 {
					return nil
				}
				ids, err := api.CreateUsers(ctx, acc.LegalEntityID, h.Users)
				if err != nil {
					return err
				}
				acc.Users = ids
				return nil
			},
			Undo: func(ctx context.Context, _ Hierarchy, acc *Created) error {
				var errs []error
				for _, u := range slices.Backward(acc.Users) {
					if err := api.DeleteUser(ctx, u.ID); err != nil {
						errs = append(errs, fmt.Errorf("user %s: %w", u.ExternalID, err))
					}
				}
				return errors.Join(errs...)
			},
		},
		{
			EventType: EventProductGroup,
			Action:    "create",
			Do: func(ctx context.Context, h Hierarchy, acc *Created) error {
				for _, g := range h.ProductGroups {
					id, err := api.CreateProductGroup(ctx, acc.LegalEntityID, g)
					if err != nil {
						return fmt.Errorf("product group %s: %w", g.Name, err)
					}
					acc.ProductGroupIDs = append(acc.ProductGroupIDs, id)
				}
				return nil
			},
		},
	}
	return saga.New(nil, steps, opts...)
}

// NewTask wraps a hierarchy into a task.
func NewTask(id, unitOfWorkID string, h Hierarchy) *Task {
	return task.New[Hierarchy, Created](TaskName, id, unitOfWorkID, h)
}

// Key identifies a hierarchy by its legal entity's external id.
func Key(h Hierarchy) string {
	return h.LegalEntity.ExternalID
}

// ErrBootstrapFailed is returned by Bootstrap when the saga fails.
var ErrBootstrapFailed = errors.New("legal entity bootstrap failed")

// Service bootstraps legal entity hierarchies.
type Service struct {
	runner *worker.Runner[Hierarchy, *Task]
	logger log.Logger
}

// NewService creates a Service. executor is normally the saga built by
// NewSaga.
func NewService(
	bufferSize int,
	repository worker.Repository[*Task],
	executor worker.StreamTaskExecutor[*Task],
	config worker.RunnerConfig,
	logger log.Logger,
	opts ...worker.Option,
) (*Service, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	preparer, err := worker.NewPreparer(bufferSize, "legal-entities", Key, NewTask)
	if err != nil {
		return nil, err
	}
	opts = append([]worker.Option{worker.WithLogger(logger)}, opts...)
	ex := worker.NewExecutor(repository, executor, opts...)
	return &Service{runner: worker.NewRunner(preparer, ex, config, logger), logger: logger}, nil
}

// Setup bootstraps every hierarchy, logs each task's audit trail and calls
// emit with its outcome.
func (s *Service) Setup(ctx context.Context, hierarchies iter.Seq[Hierarchy], emit func(worker.Result[*Task])) error {
	return s.runner.Run(ctx, hierarchies, func(uow *worker.UnitOfWork[*Task]) {
		for _, r := range worker.Results(uow) {
			r.Task.LogSummary(s.logger)
			emit(r)
		}
	})
}

// Resume finishes the bootstraps a previous process left unfinished. Each
// task's audit trail is logged and emit is called with its outcome.
func (s *Service) Resume(ctx context.Context, emit func(worker.Result[*Task])) (int, error) {
	return s.runner.Resume(ctx, func(uow *worker.UnitOfWork[*Task]) {
		for _, r := range worker.Results(uow) {
			r.Task.LogSummary(s.logger)
			emit(r)
		}
	})
}

// Bootstrap sets up a single hierarchy and fails if it did not succeed.
func (s *Service) Bootstrap(ctx context.Context, h Hierarchy) (*Task, error) {
	s.logger.Info("bootstrapping legal entity structure", log.String("name", h.LegalEntity.Name))

	var result worker.Result[*Task]
	err := s.Setup(ctx, func(yield func(Hierarchy) bool) { yield(h) }, func(r worker.Result[*Task]) {
		result = r
	})
	if err != nil {
		return nil, err
	}
	if result.Err != nil {
		return result.Task, fmt.Errorf("%w: %w", ErrBootstrapFailed, result.Err)
	}
	s.logger.Info("finished bootstrapping legal entity structure", log.String("name", h.LegalEntity.Name))
	return result.Task, nil
}
