package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Outcome is the JSON line written for one processed record. Records that
// could not be decoded carry their input line instead of a task.
type Outcome struct {
	TaskID       string `json:"taskId,omitempty"`
	UnitOfWorkID string `json:"unitOfWorkId,omitempty"`
	Line         int    `json:"line,omitempty"`
	State        string `json:"state"`
	Response     any    `json:"response,omitempty"`
	Error        string `json:"error,omitempty"`
}

// OutcomeWriter writes outcomes as newline-delimited JSON. Safe for
// concurrent use.
type OutcomeWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	err    error
	total  int
	failed int
}

// NewOutcomeWriter returns a writer emitting to w.
func NewOutcomeWriter(w io.Writer) *OutcomeWriter {
	return &OutcomeWriter{enc: json.NewEncoder(w)}
}

// Write records o. After the first write error further outcomes are
// counted but not written.
func (w *OutcomeWriter) Write(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total++
	if o.Error != "" {
		w.failed++
	}
	if w.err != nil {
		return
	}
	w.err = w.enc.Encode(o)
}

// Invalid records a failed outcome for an input line that could not be
// decoded. Its signature matches SkipInvalid.
func (w *OutcomeWriter) Invalid(line int, err error) {
	w.Write(Outcome{
		Line:  line,
		State: task.StateFailed.String(),
		Error: fmt.Sprintf("invalid record: %v", err),
	})
}

// Counts returns the number of outcomes written and how many failed.
func (w *OutcomeWriter) Counts() (total, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total, w.failed
}

// Err returns the first write error.
func (w *OutcomeWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Emit adapts w into the per-result callback the services expect.
func Emit[D, R any](w *OutcomeWriter) func(worker.Result[*task.StreamTask[D, R]]) {
	return func(r worker.Result[*task.StreamTask[D, R]]) {
		w.Write(NewOutcome(r))
	}
}

// NewOutcome converts a task result.
func NewOutcome[D, R any](r worker.Result[*task.StreamTask[D, R]]) Outcome {
	o := Outcome{
		TaskID:       r.Task.ID(),
		UnitOfWorkID: r.Task.UnitOfWorkID(),
		State:        r.Task.State().String(),
	}
	if resp, ok := r.Task.Response(); ok {
		o.Response = resp
	}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	return o
}
