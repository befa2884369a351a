package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

func TestObserver_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewObserver(reg)
	require.NoError(t, err)

	o.OnTaskDone("limit", task.StateSucceeded, 10*time.Millisecond)
	o.OnTaskDone("limit", task.StateSucceeded, 20*time.Millisecond)
	o.OnTaskDone("limit", task.StateFailed, 5*time.Millisecond)
	o.OnUnitOfWorkDone(worker.StatusPartiallyFailed, 3, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.tasksTotal.WithLabelValues("limit", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.tasksTotal.WithLabelValues("limit", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.unitsTotal.WithLabelValues("PARTIALLY_FAILED")))
	assert.Equal(t, 1, testutil.CollectAndCount(o.taskDuration))
}

func TestObserver_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewObserver(reg)
	require.NoError(t, err)

	_, err = NewObserver(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewObserver(reg)
	require.NoError(t, err)
	o.OnUnitOfWorkDone(worker.StatusCompleted, 1, time.Millisecond)

	srv := httptest.NewServer(NewHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `streamworker_units_of_work_total{status="COMPLETED"} 1`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
