// Package metrics exports engine activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

const namespace = "streamworker"

// Observer implements worker.Observer with Prometheus collectors.
type Observer struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	unitsTotal   *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
	unitTasks    prometheus.Histogram
}

var _ worker.Observer = (*Observer)(nil)

// NewObserver creates an Observer and registers its collectors with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of executed tasks by outcome.",
			},
			[]string{"task", "state"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task execution duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		unitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_of_work_total",
				Help:      "Total number of finished units of work by status.",
			},
			[]string{"status"},
		),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_of_work_duration_seconds",
				Help:      "Unit of work duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		unitTasks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_of_work_tasks",
				Help:      "Number of tasks per unit of work.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}

	for _, c := range []prometheus.Collector{o.tasksTotal, o.taskDuration, o.unitsTotal, o.unitDuration, o.unitTasks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnTaskDone records one task outcome.
func (o *Observer) OnTaskDone(name string, state task.State, d time.Duration) {
	o.tasksTotal.WithLabelValues(name, state.String()).Inc()
	o.taskDuration.WithLabelValues(name).Observe(d.Seconds())
}

// OnUnitOfWorkDone records one finished unit.
func (o *Observer) OnUnitOfWorkDone(status worker.Status, tasks int, d time.Duration) {
	o.unitsTotal.WithLabelValues(string(status)).Inc()
	o.unitDuration.WithLabelValues(string(status)).Observe(d.Seconds())
	o.unitTasks.Observe(float64(tasks))
}
