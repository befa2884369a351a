// Package worker implements the unit-of-work engine: batching an unbounded
// input sequence into UnitOfWork instances and executing their tasks
// concurrently through a StreamTaskExecutor while persisting every state
// transition through a Repository.
//
// # Flow
//
//	preparer, _ := worker.NewPreparer(100, "limits", keyFn, newTaskFn)
//	executor := worker.NewExecutor(repo, limitsExecutor, worker.WithLogger(logger))
//
//	for uow := range preparer.Prepare(items) {
//	    done, err := executor.Execute(ctx, uow)
//	    if err != nil {
//	        // repository unreachable: retry the whole unit
//	    }
//	    for _, r := range worker.Results(done) {
//	        // r.Err is a *task.TaskError for failed tasks
//	    }
//	}
//
// Runner combines both steps with bounded unit concurrency and retries of
// infrastructure failures.
//
// # Failure isolation
//
// A failing task records its own terminal error entry and never cancels its
// siblings. Execute only fails for repository errors or cancellation; domain
// failures are reported through the returned unit's tasks.
//
// # Version
//
// Current version: 0.3.0
// Minimum compatible version: 0.3.0
package worker
