package retry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/throttle/internal/fifo"
	"github.com/ygrebnov/throttle/metrics"
)

// Task is a unit of work that may fail transiently. A nil return terminates
// the retry chain as success; a non-nil return (or a panic) triggers the
// backoff/retry decision.
type Task func(ctx context.Context) error

// attempt is one link in a task's retry chain. The backoff state travels with
// the chain so each reschedule yields the next interval of the doubling
// schedule.
type attempt struct {
	task Task
	n    int
	bo   backoff.BackOff
}

// Scheduler executes tasks with bounded retries and exponential backoff on a
// fixed-size internal executor set. Methods are safe for concurrent use.
type Scheduler struct {
	config *config

	ctx context.Context

	maxRetries int
	baseDelay  time.Duration

	queue *fifo.Queue[*attempt]
	wg    sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	errors chan error

	attempts  metrics.Counter
	retries   metrics.Counter
	succeeded metrics.Counter
	exhausted metrics.Counter
	delays    metrics.Histogram
}

// New constructs a Scheduler and immediately starts threadCount executors.
// threadCount and baseDelay must be positive; maxRetries must be non-negative
// (zero means a single attempt with no retries). ctx is the base context
// handed to every attempt; Close does not cancel it.
func New(ctx context.Context, threadCount, maxRetries int, baseDelay time.Duration, opts ...Option) (*Scheduler, error) {
	if threadCount <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "thread count must be > 0"))
	}
	if maxRetries < 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "max retries must be >= 0"))
	}
	if baseDelay <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "base delay must be > 0"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	s := &Scheduler{
		config:     &cfg,
		ctx:        ctx,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		queue:      fifo.New[*attempt](),
		done:       make(chan struct{}),
		errors:     make(chan error, cfg.errorsBufferSize),
		attempts:   cfg.metrics.Counter("retry.attempts"),
		retries:    cfg.metrics.Counter("retry.retries.scheduled"),
		succeeded:  cfg.metrics.Counter("retry.tasks.succeeded"),
		exhausted:  cfg.metrics.Counter("retry.tasks.exhausted"),
		delays:     cfg.metrics.Histogram("retry.backoff.seconds"),
	}

	for i := 0; i < threadCount; i++ {
		s.wg.Add(1)
		go s.executor(i)
	}
	return s, nil
}

// Submit enqueues t for asynchronous execution with attempt counter zero and
// returns immediately. It returns ErrSchedulerClosed once Close has been
// invoked.
func (s *Scheduler) Submit(t Task) error {
	if t == nil {
		return ErrNilTask
	}
	a := &attempt{task: t, bo: s.newBackOff()}
	if !s.queue.Push(a) {
		return ErrSchedulerClosed
	}
	return nil
}

// GetErrors returns the channel carrying terminal failures: for every task
// whose retries are exhausted, one error satisfying
// errors.Is(err, ErrRetriesExhausted) and wrapping the last attempt's error.
// The channel is closed once the scheduler has fully shut down. Delivery is
// best-effort: errors are dropped when the buffer is saturated.
func (s *Scheduler) GetErrors() <-chan error { return s.errors }

// Close stops intake, drains attempts already queued, and waits for running
// attempts to finish. Retry chains parked in a backoff window are abandoned:
// their deferred re-submission finds the queue closed and is dropped. Close
// blocks until the executors have exited and is idempotent.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.queue.Close()
		go func() {
			s.wg.Wait()
			close(s.errors)
			close(s.done)
		}()
	})
	<-s.done
}

// newBackOff builds the deterministic doubling schedule for one submitted
// task: baseDelay, 2*baseDelay, 4*baseDelay, ... with no jitter and no
// elapsed-time cutoff.
func (s *Scheduler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.baseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// executor is the run loop of a single internal executor: wait for the next
// due attempt, run it, decide between terminal success, reschedule, and
// exhaustion. It exits when the queue reports closed and drained.
func (s *Scheduler) executor(id int) {
	defer s.wg.Done()
	logger := s.config.logger.With(zap.Int("executor", id))

	for {
		a, ok := s.queue.Pop()
		if !ok {
			logger.Debug("executor exiting")
			return
		}
		s.runAttempt(logger, a)
	}
}

// runAttempt executes one attempt of a retry chain and advances the chain's
// state machine: success terminates it, failure either schedules the next
// attempt after the chain's next backoff interval or reports exhaustion.
func (s *Scheduler) runAttempt(logger *zap.Logger, a *attempt) {
	s.attempts.Add(1)

	err := s.invoke(a)
	if err == nil {
		s.succeeded.Add(1)
		if a.n > 0 {
			logger.Info("task succeeded after retries", zap.Int("attempt", a.n))
		}
		return
	}

	if a.n < s.maxRetries {
		delay := a.bo.NextBackOff()
		s.retries.Add(1)
		s.delays.Record(delay.Seconds())
		logger.Warn("attempt failed; retry scheduled",
			zap.Int("attempt", a.n),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		next := &attempt{task: a.task, n: a.n + 1, bo: a.bo}
		// Deferred re-submission: the executor is released for the whole
		// backoff window.
		time.AfterFunc(delay, func() {
			if !s.queue.Push(next) {
				logger.Warn("scheduler closed during backoff; retry abandoned",
					zap.Int("attempt", next.n))
			}
		})
		return
	}

	s.exhausted.Add(1)
	logger.Error("retries exhausted",
		zap.Int("attempts", a.n+1),
		zap.Error(err),
	)
	s.report(fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, a.n+1, err))
}

// invoke runs the task, converting a panic into an error so a panicking task
// cannot kill its executor.
func (s *Scheduler) invoke(a *attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return a.task(s.ctx)
}

// report forwards err to the outward errors channel without blocking.
func (s *Scheduler) report(err error) {
	select {
	case s.errors <- err:
	default:
		// saturated; drop
	}
}
