package task

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bft-labs/streamworker/pkg/log"
)

// State is derived from a task's audit trail and response.
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is the view of a work item the engine needs. *StreamTask satisfies
// it for every data and response type.
type Task interface {
	ID() string
	UnitOfWorkID() string
	Name() string
	State() State
	Events() []Event
	Info(eventType, action string, status EventStatus, key, data, message string)
	Error(eventType, action, key, data string, err error, errorMessage, message string)
}

// StreamTask carries input data of type D and, once it succeeds, a
// response of type R.
type StreamTask[D, R any] struct {
	mu           sync.Mutex
	id           string
	unitOfWorkID string
	name         string
	data         D
	response     *R
	events       []Event
}

var _ Task = (*StreamTask[struct{}, struct{}])(nil)

// New creates a pending task. name identifies the domain ("limit",
// "transaction") and is used for metrics and logging.
func New[D, R any](name, id, unitOfWorkID string, data D) *StreamTask[D, R] {
	return &StreamTask[D, R]{
		id:           id,
		unitOfWorkID: unitOfWorkID,
		name:         name,
		data:         data,
	}
}

func (t *StreamTask[D, R]) ID() string           { return t.id }
func (t *StreamTask[D, R]) UnitOfWorkID() string { return t.unitOfWorkID }
func (t *StreamTask[D, R]) Name() string         { return t.name }

// Data returns the task input.
func (t *StreamTask[D, R]) Data() D {
	return t.data
}

// Response returns a copy of the response and whether one was set.
func (t *StreamTask[D, R]) Response() (R, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero R
	if t.response == nil {
		return zero, false
	}
	return *t.response, true
}

// SetResponse records the result of a successful execution. It is ignored
// once the task has failed.
func (t *StreamTask[D, R]) SetResponse(r R) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failedLocked() {
		return
	}
	t.response = &r
}

// State derives the task state from its trail.
func (t *StreamTask[D, R]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.failedLocked():
		return StateFailed
	case t.response != nil:
		return StateSucceeded
	default:
		return StatePending
	}
}

// Events returns a copy of the audit trail.
func (t *StreamTask[D, R]) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Info appends a progress or success entry.
func (t *StreamTask[D, R]) Info(eventType, action string, status EventStatus, key, data, message string) {
	t.append(Event{
		EventType: eventType,
		Action:    action,
		Status:    status,
		Key:       key,
		Data:      data,
		Message:   message,
	})
}

// Error appends a terminal failure entry and drops any response. When
// errorMessage is empty the error text is used as detail.
func (t *StreamTask[D, R]) Error(eventType, action, key, data string, err error, errorMessage, message string) {
	detail := errorMessage
	if detail == "" && err != nil {
		detail = err.Error()
	}
	t.append(Event{
		EventType:   eventType,
		Action:      action,
		Status:      StatusError,
		Key:         key,
		Data:        data,
		ErrorDetail: detail,
		Message:     message,
	})
}

// LogSummary writes every audit entry of the task to logger.
func (t *StreamTask[D, R]) LogSummary(logger log.Logger) {
	l := logger.With(log.TaskID(t.id), log.String("task", t.name))
	for _, e := range t.Events() {
		fields := []log.Field{
			log.String("event_type", e.EventType),
			log.String("action", e.Action),
			log.String("status", string(e.Status)),
			log.String("key", e.Key),
		}
		if e.Status == StatusError {
			l.Error(e.Message, append(fields, log.String("error_detail", e.ErrorDetail))...)
			continue
		}
		l.Info(e.Message, fields...)
	}
}

func (t *StreamTask[D, R]) append(e Event) {
	e.Timestamp = time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	if e.Terminal() {
		t.response = nil
	}
}

func (t *StreamTask[D, R]) failedLocked() bool {
	for _, e := range t.events {
		if e.Terminal() {
			return true
		}
	}
	return false
}

type snapshot[D, R any] struct {
	ID           string  `json:"id"`
	UnitOfWorkID string  `json:"unitOfWorkId"`
	Name         string  `json:"name"`
	Data         D       `json:"data"`
	Response     *R      `json:"response,omitempty"`
	Events       []Event `json:"events"`
}

// MarshalJSON encodes the task so repositories can persist it.
func (t *StreamTask[D, R]) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(snapshot[D, R]{
		ID:           t.id,
		UnitOfWorkID: t.unitOfWorkID,
		Name:         t.name,
		Data:         t.data,
		Response:     t.response,
		Events:       t.events,
	})
}

// UnmarshalJSON restores a task encoded by MarshalJSON.
func (t *StreamTask[D, R]) UnmarshalJSON(b []byte) error {
	var s snapshot[D, R]
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = s.ID
	t.unitOfWorkID = s.UnitOfWorkID
	t.name = s.Name
	t.data = s.Data
	t.response = s.Response
	t.events = s.Events
	return nil
}
