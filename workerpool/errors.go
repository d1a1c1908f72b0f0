package workerpool

import "errors"

const Namespace = "workerpool"

var (
	// ErrInvalidConfig is returned by New when construction parameters or
	// options violate their constraints.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

	// ErrPoolClosed is returned by Execute after Shutdown has been invoked.
	ErrPoolClosed = errors.New(Namespace + ": pool is shut down")

	// ErrNilTask is returned by Execute when the task is nil.
	ErrNilTask = errors.New(Namespace + ": nil task")

	// ErrTaskPanicked wraps the recovered value of a task that panicked.
	ErrTaskPanicked = errors.New(Namespace + ": task execution panicked")
)
