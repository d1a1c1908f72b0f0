package retry

import "errors"

const Namespace = "retry"

var (
	// ErrInvalidConfig is returned by New when construction parameters or
	// options violate their constraints.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

	// ErrSchedulerClosed is returned by Submit after Close has been invoked.
	ErrSchedulerClosed = errors.New(Namespace + ": scheduler is closed")

	// ErrNilTask is returned by Submit when the task is nil.
	ErrNilTask = errors.New(Namespace + ": nil task")

	// ErrTaskPanicked wraps the recovered value of a task attempt that
	// panicked. A panic counts as a failed attempt and is retried like any
	// other failure.
	ErrTaskPanicked = errors.New(Namespace + ": task execution panicked")

	// ErrRetriesExhausted wraps the last attempt's error once a task has
	// failed its initial attempt and all configured retries. It is delivered
	// on the channel returned by GetErrors.
	ErrRetriesExhausted = errors.New(Namespace + ": retries exhausted")
)
