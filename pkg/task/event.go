package task

import "time"

// EventStatus is the outcome recorded by an audit Event.
type EventStatus string

const (
	StatusInitiated EventStatus = "initiated"
	StatusSuccess   EventStatus = "success"
	StatusError     EventStatus = "error"
)

// Event is one immutable audit entry on a task.
type Event struct {
	EventType   string      `json:"eventType"`
	Action      string      `json:"action"`
	Status      EventStatus `json:"status"`
	Key         string      `json:"key,omitempty"`
	Data        string      `json:"data,omitempty"`
	ErrorDetail string      `json:"errorDetail,omitempty"`
	Message     string      `json:"message,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Terminal reports whether the entry ends processing of a task.
func (e Event) Terminal() bool {
	return e.Status == StatusError
}
