package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(nil)

	if l == nil {
		t.Fatal("NewLifecycle returned nil")
	}
	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"stopped to starting", StateStopped, StateStarting, nil},
		{"starting to running", StateStarting, StateRunning, nil},
		{"starting to crashed", StateStarting, StateCrashed, nil},
		{"running to stopping", StateRunning, StateStopping, nil},
		{"running to crashed", StateRunning, StateCrashed, nil},
		{"stopping to stopped", StateStopping, StateStopped, nil},
		{"stopping to crashed", StateStopping, StateCrashed, nil},
		{"crashed to starting", StateCrashed, StateStarting, nil},
		{"stopped to running", StateStopped, StateRunning, ErrNotRunning},
		{"stopped to stopping", StateStopped, StateStopping, ErrNotRunning},
		{"starting to stopped", StateStarting, StateStopped, ErrAlreadyRunning},
		{"running to starting", StateRunning, StateStarting, ErrAlreadyRunning},
		{"running to stopped", StateRunning, StateStopped, ErrAlreadyRunning},
		{"stopping to running", StateStopping, StateRunning, ErrAlreadyRunning},
		{"crashed to stopped", StateCrashed, StateStopped, ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(nil)
			l.state = tt.from

			err := l.TransitionTo(tt.to, "test")

			if err != tt.wantErr {
				t.Errorf("TransitionTo() error = %v, want %v", err, tt.wantErr)
			}
			want := tt.to
			if tt.wantErr != nil {
				want = tt.from
			}
			if l.State() != want {
				t.Errorf("state = %v, want %v", l.State(), want)
			}
		})
	}
}

func TestLifecycle_StartStop(t *testing.T) {
	l := NewLifecycle(nil)

	ctx, err := l.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if l.State() != StateRunning {
		t.Errorf("state = %v, want Running", l.State())
	}
	if _, err := l.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	stopped := make(chan struct{})
	l.Go(ctx, "blocker", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	if err := l.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("worker was not stopped")
	}
	if l.State() != StateStopped {
		t.Errorf("state = %v, want Stopped", l.State())
	}
	if err := l.Stop(time.Second); err != ErrNotRunning {
		t.Errorf("Stop() on stopped lifecycle = %v, want ErrNotRunning", err)
	}
}

func TestLifecycle_WorkerErrorCrashes(t *testing.T) {
	l := NewLifecycle(nil)
	ctx, err := l.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	boom := errors.New("listen failed")
	siblingStopped := make(chan struct{})
	l.Go(ctx, "sibling", func(ctx context.Context) error {
		<-ctx.Done()
		close(siblingStopped)
		return nil
	})
	l.Go(ctx, "metrics", func(context.Context) error { return boom })

	if err := l.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want %v", err, boom)
	}
	select {
	case <-siblingStopped:
	case <-time.After(time.Second):
		t.Fatal("sibling was not canceled")
	}
	if l.State() != StateCrashed {
		t.Errorf("state = %v, want Crashed", l.State())
	}
	if err := l.Stop(time.Second); !errors.Is(err, boom) {
		t.Errorf("Stop() = %v, want %v", err, boom)
	}
}

func TestLifecycle_Cancel_NilSafe(t *testing.T) {
	l := NewLifecycle(nil)

	// Should not panic when cancel is nil
	l.Cancel()
}

func TestLifecycle_WaitWithTimeout_Timeout(t *testing.T) {
	l := NewLifecycle(nil)
	ctx, err := l.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	release := make(chan struct{})
	l.Go(ctx, "stuck", func(context.Context) error {
		<-release
		return nil
	})

	if err := l.Stop(10 * time.Millisecond); err != ErrShutdownTimeout {
		t.Errorf("Stop() = %v, want ErrShutdownTimeout", err)
	}
	if l.State() != StateCrashed {
		t.Errorf("state = %v, want Crashed", l.State())
	}

	close(release)
	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
}

func TestLifecycle_Concurrency(t *testing.T) {
	l := NewLifecycle(nil)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.State()
				_ = l.Err()
			}
		}()
	}

	// Concurrent transitions (some will fail, which is expected)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.TransitionTo(StateStarting, "test")
			_ = l.TransitionTo(StateRunning, "test")
		}()
	}

	wg.Wait()
}
