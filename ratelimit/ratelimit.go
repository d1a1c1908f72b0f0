// Package ratelimit provides a token bucket admission controller.
//
// A Limiter answers a single question: is this request allowed right now?
// Tokens regenerate over time at a fixed per-second rate and are consumed one
// per admitted request. The limiter never queues or blocks; a rejected request
// is the caller's to handle (drop, queue elsewhere, or retry later).
//
// Refill granularity is deliberately coarse: only whole elapsed seconds credit
// tokens, so the effective refill lag can be up to just under one second.
// Sub-second bursts within the same refill window are not smoothed.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/throttle/metrics"
)

const Namespace = "ratelimit"

// ErrInvalidConfig is returned by New when construction parameters or options
// violate their constraints.
var ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

// config holds ambient Limiter configuration set via options.
type config struct {
	clock   func() time.Time
	metrics metrics.Provider
}

// Option configures a Limiter. Use New(capacity, rate, opts...) to construct.
type Option func(*config) error

// WithClock overrides the time source used for refill accounting.
// Intended for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) error {
		if now == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithClock requires a non-nil clock"))
		}
		cfg.clock = now
		return nil
	}
}

// WithMetrics wires a metrics provider recording allowed and denied requests.
// The default provider discards all measurements.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.metrics = p
		return nil
	}
}

// Limiter is a token bucket rate limiter. Methods are safe for concurrent use
// by any number of goroutines without external synchronization.
type Limiter struct {
	capacity   int
	refillRate int

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time

	now     func() time.Time
	allowed metrics.Counter
	denied  metrics.Counter
}

// New constructs a Limiter with the given bucket capacity and per-second
// refill rate. The bucket starts full. Both parameters must be positive.
func New(capacity, refillRatePerSecond int, opts ...Option) (*Limiter, error) {
	if capacity <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "capacity must be > 0"))
	}
	if refillRatePerSecond <= 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "refill rate must be > 0"))
	}

	cfg := config{clock: time.Now, metrics: metrics.NewNoopProvider()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	l := &Limiter{
		capacity:   capacity,
		refillRate: refillRatePerSecond,
		tokens:     capacity,
		now:        cfg.clock,
		allowed:    cfg.metrics.Counter("ratelimit.requests.allowed"),
		denied:     cfg.metrics.Counter("ratelimit.requests.denied"),
	}
	l.lastRefill = l.now()
	return l, nil
}

// Allow reports whether a single request may proceed, consuming one token if
// so. Refill and admission happen as one critical section, so concurrent
// callers can never both consume the same token or observe stale counts.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	l.refillLocked()
	if l.tokens > 0 {
		l.tokens--
		l.mu.Unlock()
		l.allowed.Add(1)
		return true
	}
	l.mu.Unlock()
	l.denied.Add(1)
	return false
}

// Tokens returns the number of tokens currently available, after crediting any
// refill due. Intended for observation; the value may be stale by the time the
// caller acts on it.
func (l *Limiter) Tokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}

// refillLocked credits floor(elapsedSeconds) * refillRate tokens, clamped to
// capacity, and advances the refill timestamp. Partial seconds carry no
// fractional credit. Callers must hold l.mu.
func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed < time.Second {
		return
	}
	l.tokens += int(elapsed/time.Second) * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}
