package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

type testTask = task.StreamTask[string, string]

func newTestTask(id, data string) *testTask {
	return task.New[string, string]("test", id, "uow-1", data)
}

// funcExecutor adapts a function into a StreamTaskExecutor.
type funcExecutor func(ctx context.Context, t *testTask) (*testTask, error)

func (f funcExecutor) ExecuteTask(ctx context.Context, t *testTask) (*testTask, error) {
	return f(ctx, t)
}

func (f funcExecutor) RollBack(_ context.Context, t *testTask) (*testTask, error) {
	return t, nil
}

// echoExecutor succeeds with an uppercase echo of the data, and fails for
// data prefixed with "fail".
var echoExecutor = funcExecutor(func(_ context.Context, t *testTask) (*testTask, error) {
	if len(t.Data()) >= 4 && t.Data()[:4] == "fail" {
		err := errors.New("backend rejected " + t.Data())
		t.Error("test", "create", t.ID(), t.Data(), err, "", "create failed")
		return t, task.NewTaskError(t, err, "create failed")
	}
	t.Info("test", "create", task.StatusSuccess, t.ID(), t.Data(), "created")
	t.SetResponse("ok:" + t.Data())
	return t, nil
})

// recordingRepository stores saved statuses and can fail on demand.
type recordingRepository struct {
	mu       sync.Mutex
	statuses []worker.Status
	units    map[string]*worker.UnitOfWork[*testTask]
	failOn   func(call int, status worker.Status) bool
	calls    int
}

func newRecordingRepository() *recordingRepository {
	return &recordingRepository{units: make(map[string]*worker.UnitOfWork[*testTask])}
}

func (r *recordingRepository) Save(_ context.Context, uow *worker.UnitOfWork[*testTask]) (*worker.UnitOfWork[*testTask], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failOn != nil && r.failOn(r.calls, uow.Status) {
		return nil, fmt.Errorf("disk full")
	}
	r.statuses = append(r.statuses, uow.Status)
	r.units[uow.ID] = uow
	return uow, nil
}

func (r *recordingRepository) FindByID(_ context.Context, id string) (*worker.UnitOfWork[*testTask], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uow, ok := r.units[id]
	if !ok {
		return nil, worker.ErrNotFound
	}
	return uow, nil
}

func (r *recordingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, id)
	return nil
}

func (r *recordingRepository) Statuses() []worker.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]worker.Status(nil), r.statuses...)
}

// countingObserver counts notifications.
type countingObserver struct {
	mu    sync.Mutex
	tasks map[task.State]int
	units map[worker.Status]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{tasks: map[task.State]int{}, units: map[worker.Status]int{}}
}

func (o *countingObserver) OnTaskDone(_ string, s task.State, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks[s]++
}

func (o *countingObserver) OnUnitOfWorkDone(s worker.Status, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.units[s]++
}

func newUnitTask(id, unitOfWorkID, data string) *testTask {
	return task.New[string, string]("test", id, unitOfWorkID, data)
}
