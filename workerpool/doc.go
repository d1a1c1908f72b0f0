// Package workerpool provides a fixed-size pool of goroutines draining an
// unbounded FIFO task queue.
//
// Submission is decoupled from execution: Execute appends to the queue and
// never blocks the caller, while a bounded set of long-lived workers executes
// tasks one at a time. Tasks are delivered to workers in submission order;
// completion order depends on individual task duration.
//
// Failure containment
//
// A task returning an error or panicking never terminates its worker. Failures
// are logged and forwarded best-effort to the channel returned by GetErrors;
// when that buffer is saturated, further errors are dropped so a slow or absent
// reader cannot stall execution. The pool never retries a failed task — wrap
// submissions with the retry package if transient failures should be retried.
//
// Shutdown
//
// Shutdown is graceful: new submissions are rejected with ErrPoolClosed,
// workers blocked on an empty queue are woken, and already-queued tasks drain
// before the workers exit. Tasks already executing are never preempted.
package workerpool
