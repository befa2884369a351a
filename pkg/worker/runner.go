package worker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/task"
)

// RunnerConfig controls how a Runner drives units of work.
type RunnerConfig struct {
	// MaxConcurrentUnits bounds units executing at once. Zero or negative
	// means unbounded.
	MaxConcurrentUnits int

	// RetryAttempts is how many times a unit is retried after a repository
	// failure.
	RetryAttempts int

	// RetryInitial and RetryMax bound the backoff between retries.
	RetryInitial time.Duration
	RetryMax     time.Duration

	// EvictFinished deletes each unit from the repository once handle has
	// seen it. Long-running processes on a non-evicting store need it.
	EvictFinished bool
}

// DefaultRunnerConfig returns a RunnerConfig with sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxConcurrentUnits: 4,
		RetryAttempts:      3,
		RetryInitial:       DefaultBackoffInitial,
		RetryMax:           DefaultBackoffMax,
	}
}

// Runner prepares and executes units of work from one input sequence.
type Runner[In any, T task.Task] struct {
	preparer *Preparer[In, T]
	executor *Executor[T]
	config   RunnerConfig
	logger   log.Logger
}

// NewRunner creates a Runner.
func NewRunner[In any, T task.Task](preparer *Preparer[In, T], executor *Executor[T], config RunnerConfig, logger log.Logger) *Runner[In, T] {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Runner[In, T]{
		preparer: preparer,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// Run pulls items, executes each unit and calls handle with every finished
// unit. handle is never called concurrently. Input is pulled only while
// fewer than MaxConcurrentUnits units are in flight. Run returns the first
// unrecoverable repository error or the context error; in-flight units are
// then cancelled.
func (r *Runner[In, T]) Run(ctx context.Context, items iter.Seq[In], handle func(*UnitOfWork[T])) error {
	g, gctx := errgroup.WithContext(ctx)
	if r.config.MaxConcurrentUnits > 0 {
		g.SetLimit(r.config.MaxConcurrentUnits)
	}

	var mu sync.Mutex
	for uow := range r.preparer.Prepare(items) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			done, err := r.execute(gctx, uow)
			if err != nil {
				return err
			}
			mu.Lock()
			handle(done)
			mu.Unlock()
			if r.config.EvictFinished {
				r.evict(gctx, done.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Resume executes the pending tasks of every stored unit of this runner's
// domain that never finished, such as units left RUNNING by a crashed
// process. Units run one at a time and handle is called with each. It
// returns the number of units resumed.
func (r *Runner[In, T]) Resume(ctx context.Context, handle func(*UnitOfWork[T])) (int, error) {
	repo := r.executor.repository
	lister, ok := repo.(Lister)
	if !ok {
		return 0, ErrNotListable
	}
	prefix := ""
	if r.preparer.prefix != "" {
		prefix = r.preparer.prefix + "-"
	}
	ids, err := lister.IDs(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: list units: %w", ErrRepository, err)
	}

	resumed := 0
	for _, id := range ids {
		uow, err := repo.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return resumed, fmt.Errorf("%w: load %s: %w", ErrRepository, id, err)
		}
		if uow.Status.Finished() {
			continue
		}
		// a stored RUNNING unit belongs to a process that is gone
		uow.Status = StatusPending
		r.logger.Info("resuming unit of work", log.UnitOfWorkID(id), log.Int("tasks", len(uow.StreamTasks)))

		done, err := r.execute(ctx, uow)
		if err != nil {
			return resumed, err
		}
		resumed++
		handle(done)
		if r.config.EvictFinished {
			r.evict(ctx, done.ID)
		}
	}
	return resumed, nil
}

// execute retries a unit while the repository is failing.
func (r *Runner[In, T]) execute(ctx context.Context, uow *UnitOfWork[T]) (*UnitOfWork[T], error) {
	b := newBackoff(r.config.RetryInitial, r.config.RetryMax)
	for attempt := 0; ; attempt++ {
		done, err := r.executor.Execute(ctx, uow)
		if err == nil {
			return done, nil
		}
		if !errors.Is(err, ErrRepository) || attempt >= r.config.RetryAttempts {
			return done, err
		}
		r.logger.Warn("retrying unit of work",
			log.UnitOfWorkID(uow.ID),
			log.Int("attempt", attempt+1),
			log.Duration("backoff", b.Current()),
			log.Err(err),
		)
		if err := b.Sleep(ctx); err != nil {
			return done, err
		}
	}
}

// evict drops a handled unit. A failed delete only costs memory, so it is
// logged and not returned.
func (r *Runner[In, T]) evict(ctx context.Context, id string) {
	if err := r.executor.repository.Delete(ctx, id); err != nil {
		r.logger.Warn("failed to evict unit of work", log.UnitOfWorkID(id), log.Err(err))
	}
}
