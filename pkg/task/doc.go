// Package task defines the atomic work item of the engine: a StreamTask
// holding one domain input, its eventual response and an append-only audit
// trail of Events.
//
// A task is owned by exactly one execution chain at a time. Executors
// record progress with Info and failures with Error; the task's State is
// derived from that trail and from whether a response was set.
//
// # Version
//
// Current version: 0.3.0
// Minimum compatible version: 0.3.0
package task
