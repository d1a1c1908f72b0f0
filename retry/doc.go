// Package retry provides an asynchronous retry scheduler with exponential
// backoff.
//
// A Scheduler executes submitted tasks on a fixed number of internal executors.
// When a task fails, the scheduler re-submits it after a delay that doubles
// with each attempt (baseDelay, 2*baseDelay, 4*baseDelay, ...), up to a fixed
// number of retries. The backoff window never occupies an executor: the
// re-submission is deferred on a timer, so capacity stays available for other
// tasks while a chain waits out its delay.
//
// Submission is fire-and-forget. Terminal outcomes are observable through the
// channel returned by GetErrors, which carries an ErrRetriesExhausted-wrapped
// error for every task that failed its initial attempt and all retries;
// successes are not reported. Attempts for a single task are strictly ordered:
// attempt N+1 is only ever scheduled after attempt N has failed.
package retry
