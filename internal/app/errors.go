package app

import "errors"

var (
	// ErrAlreadyRunning is returned when Start is called on a running lifecycle.
	ErrAlreadyRunning = errors.New("streamworker: already running")

	// ErrNotRunning is returned when Stop is called on a stopped lifecycle.
	ErrNotRunning = errors.New("streamworker: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("streamworker: shutdown timeout")

	// ErrUnknownPersistence is returned for an unsupported persistence kind.
	ErrUnknownPersistence = errors.New("streamworker: unknown persistence")
)
