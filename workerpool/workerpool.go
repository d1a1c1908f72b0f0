package workerpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/throttle/internal/fifo"
	"github.com/ygrebnov/throttle/metrics"
)

// Task is a unit of work executed by a pool worker. The context passed in is
// the one supplied to New; graceful shutdown does not cancel it.
type Task func(ctx context.Context) error

// Pool executes submitted tasks on a fixed number of long-lived workers.
// Methods are safe for concurrent use.
type Pool struct {
	config *config

	ctx context.Context

	queue *fifo.Queue[Task]
	wg    sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	errors chan error

	submitted metrics.Counter
	executed  metrics.Counter
	failed    metrics.Counter
	queued    metrics.UpDownCounter
}

// New constructs a Pool and immediately starts workerCount workers, each
// entering its run loop. workerCount must be positive. ctx is the base context
// handed to every task; it is not canceled by Shutdown.
func New(ctx context.Context, workerCount int, opts ...Option) (*Pool, error) {
	if workerCount <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "worker count must be > 0"))
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

	p := &Pool{
		config:    &cfg,
		ctx:       ctx,
		queue:     fifo.New[Task](),
		done:      make(chan struct{}),
		errors:    make(chan error, cfg.errorsBufferSize),
		submitted: cfg.metrics.Counter("workerpool.tasks.submitted"),
		executed:  cfg.metrics.Counter("workerpool.tasks.executed"),
		failed:    cfg.metrics.Counter("workerpool.tasks.failed"),
		queued:    cfg.metrics.UpDownCounter("workerpool.queue.depth"),
	}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p, nil
}

// Execute appends t to the task queue. It never blocks waiting for a free
// worker; the queue is unbounded. It returns ErrPoolClosed once Shutdown has
// been invoked.
func (p *Pool) Execute(t Task) error {
	if t == nil {
		return ErrNilTask
	}
	if !p.queue.Push(t) {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	p.queued.Add(1)
	return nil
}

// Shutdown gracefully stops the pool: new submissions are rejected, workers
// blocked on the empty queue are woken, and already-queued tasks drain before
// the workers exit. It blocks until all workers have exited and is idempotent.
func (p *Pool) Shutdown() { _ = p.ShutdownContext(context.Background()) }

// ShutdownContext is Shutdown bounded by the caller's context. The drain keeps
// making progress in the background even when ctx expires first; the returned
// error only reports that the wait was cut short.
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.queue.Close()
		go func() {
			p.wg.Wait()
			close(p.errors)
			close(p.done)
		}()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetErrors returns the channel carrying task failures and recovered panics.
// The channel is closed once the pool has fully shut down. Delivery is
// best-effort: errors are dropped when the buffer is saturated.
func (p *Pool) GetErrors() <-chan error { return p.errors }

// QueueLength returns the number of tasks waiting for a worker.
func (p *Pool) QueueLength() int { return p.queue.Len() }

// worker is the run loop of a single pool worker: wait for the next task,
// execute it synchronously, repeat. It exits when the queue reports closed
// and drained.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := p.config.logger.With(zap.Int("worker", id))

	for {
		t, ok := p.queue.Pop()
		if !ok {
			logger.Debug("worker exiting")
			return
		}
		p.queued.Add(-1)
		p.run(logger, t)
	}
}

// run executes a single task, containing errors and panics so the worker
// survives to process subsequent tasks.
func (p *Pool) run(logger *zap.Logger, t Task) {
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil {
			p.failed.Add(1)
			logger.Error("task panicked", zap.Any("panic", r))
			p.report(fmt.Errorf("%w: %v", ErrTaskPanicked, r))
		}
	}()

	if err := t(p.ctx); err != nil {
		p.failed.Add(1)
		logger.Warn("task failed", zap.Error(err))
		p.report(err)
	}
}

// report forwards err to the outward errors channel without blocking.
func (p *Pool) report(err error) {
	select {
	case p.errors <- err:
	default:
		// saturated; drop
	}
}
