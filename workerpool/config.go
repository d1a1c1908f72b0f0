package workerpool

import (
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/throttle/metrics"
)

// config holds Pool configuration set via options.
type config struct {
	// logger receives worker lifecycle and task failure events.
	// Default: zap.NewNop().
	logger *zap.Logger

	// metrics provides the instruments the pool records into.
	// Default: a no-op provider.
	metrics metrics.Provider

	// errorsBufferSize is the capacity of the outward errors channel.
	// Default: 1024.
	errorsBufferSize uint
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		logger:           zap.NewNop(),
		metrics:          metrics.NewNoopProvider(),
		errorsBufferSize: 1024,
	}
}

// Option configures a Pool. Use New(ctx, workerCount, opts...) to construct.
type Option func(*config) error

// WithLogger sets the structured logger used for worker lifecycle events,
// task failures, and recovered panics.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.logger = l
		return nil
	}
}

// WithMetrics wires a metrics provider recording submission, execution,
// failure, and queue depth instruments.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.metrics = p
		return nil
	}
}

// WithErrorsBuffer sets the capacity of the errors channel (default 1024).
// Errors beyond the buffer are dropped rather than stalling workers.
func WithErrorsBuffer(size uint) Option {
	return func(cfg *config) error { cfg.errorsBufferSize = size; return nil }
}
