// Package log provides the structured logging port used across streamworker.
//
// Engine packages (worker, saga, repositories) depend only on the Logger
// interface. The zerolog adapter is wired in by the command line; libraries
// embedding the engine can supply their own implementation or use the no-op
// logger.
//
// # Usage
//
//	logger := log.NewZerologAdapter(os.Stderr, "info", false)
//	logger = logger.With(log.String("component", "limits"))
//	logger.Info("unit of work completed", log.UnitOfWorkID(id))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.1.0
package log
