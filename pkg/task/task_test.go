package task

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/log"
)

type limit struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
}

type report struct {
	Accepted int `json:"accepted"`
}

func newLimitTask() *StreamTask[limit, report] {
	return New[limit, report]("limit", "limits-1-u1", "limits-1", limit{UserID: "u1", Amount: 10})
}

func TestNew(t *testing.T) {
	tk := newLimitTask()

	assert.Equal(t, "limits-1-u1", tk.ID())
	assert.Equal(t, "limits-1", tk.UnitOfWorkID())
	assert.Equal(t, "limit", tk.Name())
	assert.Equal(t, limit{UserID: "u1", Amount: 10}, tk.Data())
	assert.Equal(t, StatePending, tk.State())
	assert.Empty(t, tk.Events())

	_, ok := tk.Response()
	assert.False(t, ok)
}

func TestStreamTask_AuditTrailOnlyGrows(t *testing.T) {
	tk := newLimitTask()

	tk.Info("limit", "create", StatusInitiated, "u1", "", "started")
	first := tk.Events()
	require.Len(t, first, 1)

	tk.Info("limit", "create", StatusSuccess, "u1", "stats", "created")
	tk.Error("limit", "notify", "u1", "", errors.New("boom"), "", "notify failed")
	tk.Error("limit", "notify", "u1", "", nil, "again", "notify failed again")

	events := tk.Events()
	require.Len(t, events, 4)
	assert.Equal(t, first[0], events[0])
	assert.Equal(t, StatusSuccess, events[1].Status)
	assert.Equal(t, "boom", events[2].ErrorDetail)
	assert.Equal(t, "again", events[3].ErrorDetail)
	for _, e := range events {
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestStreamTask_EventsReturnsCopy(t *testing.T) {
	tk := newLimitTask()
	tk.Info("limit", "create", StatusSuccess, "u1", "", "created")

	events := tk.Events()
	events[0].Message = "tampered"

	assert.Equal(t, "created", tk.Events()[0].Message)
}

func TestStreamTask_States(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		tk := newLimitTask()
		tk.SetResponse(report{Accepted: 1})
		tk.Info("limit", "create", StatusSuccess, "u1", "", "created")

		assert.Equal(t, StateSucceeded, tk.State())
		r, ok := tk.Response()
		require.True(t, ok)
		assert.Equal(t, 1, r.Accepted)
	})

	t.Run("error drops response", func(t *testing.T) {
		tk := newLimitTask()
		tk.SetResponse(report{Accepted: 1})
		tk.Error("limit", "create", "u1", "", errors.New("timeout"), "", "failed")

		assert.Equal(t, StateFailed, tk.State())
		_, ok := tk.Response()
		assert.False(t, ok)
	})

	t.Run("response ignored after failure", func(t *testing.T) {
		tk := newLimitTask()
		tk.Error("limit", "create", "u1", "", errors.New("timeout"), "", "failed")
		tk.SetResponse(report{Accepted: 1})

		assert.Equal(t, StateFailed, tk.State())
		_, ok := tk.Response()
		assert.False(t, ok)
	})
}

func TestStreamTask_ConcurrentAppends(t *testing.T) {
	tk := newLimitTask()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk.Info("limit", "create", StatusInitiated, "u1", "", "tick")
			_ = tk.Events()
		}()
	}
	wg.Wait()

	assert.Len(t, tk.Events(), 50)
}

func TestStreamTask_JSONRoundTrip(t *testing.T) {
	tk := newLimitTask()
	tk.Info("limit", "create", StatusSuccess, "u1", "accepted=1", "created")
	tk.SetResponse(report{Accepted: 1})

	b, err := json.Marshal(tk)
	require.NoError(t, err)

	var decoded *StreamTask[limit, report]
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, tk.ID(), decoded.ID())
	assert.Equal(t, tk.UnitOfWorkID(), decoded.UnitOfWorkID())
	assert.Equal(t, tk.Name(), decoded.Name())
	assert.Equal(t, tk.Data(), decoded.Data())
	assert.Equal(t, StateSucceeded, decoded.State())
	require.Len(t, decoded.Events(), 1)
	assert.True(t, tk.Events()[0].Timestamp.Equal(decoded.Events()[0].Timestamp))
}

func TestTaskError(t *testing.T) {
	cause := errors.New("connection refused")
	tk := newLimitTask()

	err := error(NewTaskError(tk, cause, "Failed to ingest limits"))

	assert.ErrorIs(t, err, cause)
	var te *TaskError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tk.ID(), te.Task.ID())
	assert.Equal(t, "task limits-1-u1: Failed to ingest limits: connection refused", err.Error())

	assert.Equal(t, "task limits-1-u1: connection refused", NewTaskError(tk, cause, "").Error())
	assert.Equal(t, "task limits-1-u1: no data", NewTaskError(tk, nil, "no data").Error())
}

type recordingLogger struct {
	log.NoopLogger
	infos, errors []string
}

func (r *recordingLogger) Info(msg string, fields ...log.Field)  { r.infos = append(r.infos, msg) }
func (r *recordingLogger) Error(msg string, fields ...log.Field) { r.errors = append(r.errors, msg) }
func (r *recordingLogger) With(fields ...log.Field) log.Logger   { return r }

func TestStreamTask_LogSummary(t *testing.T) {
	tk := newLimitTask()
	tk.Info("limit", "create", StatusInitiated, "u1", "", "started")
	tk.Error("limit", "create", "u1", "", errors.New("boom"), "", "failed")

	rec := &recordingLogger{}
	tk.LogSummary(rec)

	assert.Equal(t, []string{"started"}, rec.infos)
	assert.Equal(t, []string{"failed"}, rec.errors)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
