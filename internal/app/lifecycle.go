package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/streamworker/pkg/log"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the long-running workers.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// Lifecycle supervises background workers such as the inbox watcher and
// the metrics server. A worker returning an error crashes the lifecycle and
// cancels its siblings.
type Lifecycle struct {
	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	err    error
	wg     sync.WaitGroup
	logger log.Logger
}

// NewLifecycle creates a stopped lifecycle.
func NewLifecycle(logger log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{state: StateStopped, logger: logger}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the first worker error.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if err := validTransition(oldState, newState); err != nil {
		l.mu.Unlock()
		return err
	}
	l.state = newState
	l.mu.Unlock()

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func validTransition(from, to State) error {
	switch from {
	case StateStopped, StateCrashed:
		if to != StateStarting {
			return ErrNotRunning
		}
	case StateStarting:
		if to != StateRunning && to != StateCrashed {
			return ErrAlreadyRunning
		}
	case StateRunning:
		if to != StateStopping && to != StateCrashed {
			return ErrAlreadyRunning
		}
	case StateStopping:
		if to != StateStopped && to != StateCrashed {
			return ErrAlreadyRunning
		}
	}
	return nil
}

// Start moves the lifecycle to Running and returns the context workers
// should run under. It is canceled by Stop or by the first worker error.
func (l *Lifecycle) Start(ctx context.Context) (context.Context, error) {
	if err := l.TransitionTo(StateStarting, "start requested"); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.err = nil
	l.mu.Unlock()

	if err := l.TransitionTo(StateRunning, "started"); err != nil {
		cancel()
		return nil, err
	}
	return runCtx, nil
}

// Go runs fn as a supervised worker.
func (l *Lifecycle) Go(ctx context.Context, name string, fn func(context.Context) error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		l.logger.Error("worker failed", log.String("worker", name), log.Err(err))
		l.mu.Lock()
		first := l.err == nil
		if first {
			l.err = err
		}
		l.mu.Unlock()
		if first {
			_ = l.TransitionTo(StateCrashed, name+" failed")
			l.Cancel()
		}
	}()
}

// Cancel triggers graceful shutdown of the workers.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every worker returned and reports the first worker error.
func (l *Lifecycle) Wait() error {
	l.wg.Wait()
	return l.Err()
}

// Stop cancels the workers and waits up to timeout for them to return.
// A crashed lifecycle is not restarted; its first worker error is returned.
func (l *Lifecycle) Stop(timeout time.Duration) error {
	if l.State() == StateCrashed {
		l.Cancel()
		if err := l.WaitWithTimeout(timeout); err != nil {
			return err
		}
		return l.Err()
	}
	if err := l.TransitionTo(StateStopping, "stop requested"); err != nil {
		return err
	}
	l.Cancel()
	if err := l.WaitWithTimeout(timeout); err != nil {
		_ = l.TransitionTo(StateCrashed, "shutdown timeout")
		return err
	}
	if err := l.Err(); err != nil {
		return err
	}
	return l.TransitionTo(StateStopped, "stopped")
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
