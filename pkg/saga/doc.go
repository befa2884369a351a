// Package saga provides a StreamTaskExecutor that runs one task as an
// ordered sequence of dependent steps.
//
// Each step reads the task input and an accumulator that becomes the task
// response once every step succeeds. Steps run one after another so later
// steps can use identifiers minted by earlier ones:
//
//	s := saga.New(seed,
//	    saga.Step[Hierarchy, Created]{EventType: "legal-entity", Action: "create", Do: createEntity, Undo: deleteEntity},
//	    saga.Step[Hierarchy, Created]{EventType: "user", Action: "create", Do: createUsers},
//	)
//
// The first failing step stops the saga. Compensation of the steps that
// already succeeded only happens when the saga is built WithCompensation.
package saga
