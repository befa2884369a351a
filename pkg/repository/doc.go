// Package repository holds helpers shared by the worker.Repository
// implementations in its subpackages:
//
//   - memory: concurrency-safe map, the default for short-lived processes
//   - file: one JSON document per unit of work in a directory
//   - badgerdb: embedded BadgerDB key-value store
//   - sqlstore: SQL table on PostgreSQL or SQLite
//
// Durable implementations store the JSON encoding of a unit of work, so the
// task type must round-trip through encoding/json. *task.StreamTask does.
package repository
